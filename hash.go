// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package elastic

import (
	"encoding/binary"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/spaolacci/murmur3"
)

// Key is the set of fixed-width integer types a Table can be keyed by. The
// byte representation of a key, which is what gets hashed, is its
// little-endian encoding at the key's width.
type Key interface {
	~int32 | ~uint32 | ~int64 | ~uint64
}

// HashFunc is a well-distributed, non-cryptographic 32-bit hash of data under
// a seed. Two hashes of the same key under different seeds must be
// effectively independent.
type HashFunc func(data []byte, seed uint32) uint32

// Seeds holds the two seeds used to derive the h1 and h2 hashes of a key.
type Seeds struct {
	H1 uint32
	H2 uint32
}

// DefaultSeeds are the seeds a Table uses unless WithSeeds is specified.
var DefaultSeeds = Seeds{
	H1: 0x9747b28c,
	H2: 0x85ebca6b,
}

// Murmur3 is the default HashFunc: MurmurHash3 x86 32-bit.
func Murmur3(data []byte, seed uint32) uint32 {
	return murmur3.Sum32WithSeed(data, seed)
}

// XXHash is a HashFunc built on seeded 64-bit xxHash, folded to 32 bits.
func XXHash(data []byte, seed uint32) uint32 {
	d := xxhash.NewWithSeed(uint64(seed))
	if _, err := d.Write(data); err != nil {
		// Digest.Write never fails, and keys are fixed-width integers whose
		// encoding is always well formed.
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "xxhash: hashing %d bytes", len(data)))
	}
	h := d.Sum64()
	return uint32(h) ^ uint32(h>>32)
}

// HashKey computes the probe value of key: the pairing Phi(h1, h2) of the two
// seeded hashes of the key's byte representation. HashKey is a pure function
// of its arguments.
func HashKey[K Key](key K, seeds Seeds, hash HashFunc) ProbeValue {
	h1, h2 := hashPair(key, seeds, hash)
	return Phi(h1, h2)
}

func hashPair[K Key](key K, seeds Seeds, hash HashFunc) (h1, h2 uint32) {
	var buf [8]byte
	b := encodeKey(buf[:0], key)
	return hash(b, seeds.H1), hash(b, seeds.H2)
}

// encodeKey appends the little-endian encoding of key to b.
func encodeKey[K Key](b []byte, key K) []byte {
	switch unsafe.Sizeof(key) {
	case 4:
		return binary.LittleEndian.AppendUint32(b, uint32(key))
	case 8:
		return binary.LittleEndian.AppendUint64(b, uint64(key))
	default:
		panic(errors.AssertionFailedf("unexpected key width %d", unsafe.Sizeof(key)))
	}
}
