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
	"fmt"
	"math/bits"

	"lukechampine.com/uint128"
)

// ProbeValue is the integer a key's probe sequence is derived from. It holds
// the pairing of two 32-bit hashes and so needs up to 2*32+1+32 = 97 bits.
type ProbeValue = uint128.Uint128

// Phi pairs a and b into a single integer. For every effective bit of b,
// from the most significant down, it emits a 1 marker followed by the bit.
// Then it emits a 0 separator, followed by the effective bits of a:
//
//	Phi(2, 3):  1 1 1 1  0  1 0  = 122
//	            └─ b ─┘  │  └a┘
//	                     separator
//
// The encoding of b is self-delimiting, so Phi is injective whenever b is
// nonzero and Phi(a, b) != Phi(b, a) for distinct nonzero a and b. Note that
// Phi(a, 0) == a.
func Phi(a, b uint32) ProbeValue {
	var r ProbeValue
	for i := bits.Len32(b) - 1; i >= 0; i-- {
		r = r.Lsh(2).Or64(0b10 | uint64((b>>i)&1))
	}
	// The separator bit, then a.
	r = r.Lsh(1)
	return r.Lsh(uint(bits.Len32(a))).Or64(uint64(a))
}

// mix64 is the MurmurHash3 64-bit finalizer. Every input bit affects every
// output bit.
func mix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// probeOffset returns the candidate offset within a bucket of the given size
// for the attempt'th probe of bucket. The (attempt, bucket) pair is itself
// paired with Phi, shifted by one so that both halves are nonzero and the
// pairing is injective, then mixed into the probe value.
func probeOffset(pv ProbeValue, bucket, attempt, size int) int {
	x := Phi(uint32(attempt)+1, uint32(bucket)+1)
	h := mix64(pv.Lo ^ x.Lo ^ mix64(pv.Hi^x.Hi))
	return int(h % uint64(size))
}

// probeSeq is the sequence of candidate offsets visited within one bucket.
//
// A bucket larger than the probe limit is sampled: probeSeq yields limit
// pseudo-random offsets derived from the probe value, the bucket index and
// the attempt number. Offsets may repeat. The last bucket, and any bucket no
// larger than the probe limit, is scanned linearly starting at the attempt 0
// offset so that every one of its slots is visited exactly once.
//
// The sequence for a given (probe value, bucket, size, limit) is fixed, which
// is what allows lookups to stop at the first empty slot: an insert of the
// same key would have claimed that slot.
type probeSeq struct {
	probe  ProbeValue
	bucket int
	size   int
	limit  int
	linear bool
	// index is the number of offsets yielded before this one.
	index  int
	offset int
}

func makeProbeSeq(pv ProbeValue, bucket, size, limit int, last bool) probeSeq {
	s := probeSeq{
		probe:  pv,
		bucket: bucket,
		size:   size,
		limit:  limit,
		linear: last || size <= limit,
	}
	if s.linear {
		s.limit = size
	}
	s.offset = probeOffset(pv, bucket, 0, size)
	return s
}

func (s probeSeq) done() bool {
	return s.index >= s.limit
}

func (s probeSeq) next() probeSeq {
	s.index++
	if s.linear {
		s.offset++
		if s.offset == s.size {
			s.offset = 0
		}
	} else {
		s.offset = probeOffset(s.probe, s.bucket, s.index, s.size)
	}
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("bucket=%d size=%d limit=%d linear=%t index=%d offset=%d",
		s.bucket, s.size, s.limit, s.linear, s.index, s.offset)
}
