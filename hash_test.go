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
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"lukechampine.com/frand"
)

func TestMurmur3(t *testing.T) {
	// Reference vectors for MurmurHash3 x86 32-bit.
	require.EqualValues(t, 0x248bfa47, Murmur3([]byte("hello"), 0))
	require.EqualValues(t, 0x514e28b7, Murmur3(nil, 1))
	require.EqualValues(t, 0, Murmur3(nil, 0))
}

func TestHashKey(t *testing.T) {
	testCases := []struct {
		key    int32
		h1, h2 uint32
		probe  string
	}{
		{0, 0xa366817d, 0x70cd40bf, "7f55f5f77555dffea366817d"},
		{1, 0xf354e7bc, 0x8131265a, "1d5575f575d7d77dcf354e7bc"},
		{42, 0x0c9aa44c, 0x489b4c07, "75d5d7df75f5557ec9aa44c"},
		{-1, 0x9de672fb, 0x02300034, "1d5f5555555f749de672fb"},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprint(c.key), func(t *testing.T) {
			h1, h2 := hashPair(c.key, DefaultSeeds, Murmur3)
			require.Equal(t, c.h1, h1)
			require.Equal(t, c.h2, h2)

			pv := HashKey(c.key, DefaultSeeds, Murmur3)
			require.Equal(t, c.probe, pv.Big().Text(16))
			require.Equal(t, Phi(h1, h2), pv)

			// Pure: recomputing yields the same value.
			require.Equal(t, pv, HashKey(c.key, DefaultSeeds, Murmur3))
		})
	}
}

func TestHashKeySeeds(t *testing.T) {
	other := Seeds{H1: 1, H2: 2}
	var differ int
	for k := int32(0); k < 1000; k++ {
		if HashKey(k, DefaultSeeds, Murmur3) != HashKey(k, other, Murmur3) {
			differ++
		}
	}
	require.Equal(t, 1000, differ)
}

func TestEncodeKey(t *testing.T) {
	var captured [][]byte
	capture := func(data []byte, seed uint32) uint32 {
		captured = append(captured, append([]byte(nil), data...))
		return seed
	}

	h1, h2 := hashPair(int32(-2), Seeds{H1: 7, H2: 9}, capture)
	require.EqualValues(t, 7, h1)
	require.EqualValues(t, 9, h2)
	// Both hashes see the full key bytes.
	require.Equal(t, [][]byte{{0xfe, 0xff, 0xff, 0xff}, {0xfe, 0xff, 0xff, 0xff}}, captured)

	captured = nil
	hashPair(uint64(0x0102030405060708), DefaultSeeds, capture)
	require.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, captured[0])

	type userID uint32
	captured = nil
	hashPair(userID(0xdeadbeef), DefaultSeeds, capture)
	require.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, captured[0])
}

func TestXXHash(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	require.Equal(t, XXHash(data, 1), XXHash(data, 1))
	require.NotEqual(t, XXHash(data, 1), XXHash(data, 2))
	require.NotEqual(t, XXHash(data, 1), XXHash([]byte{1, 2, 3, 5}, 1))
}

// TestHashUniformity checks that h1 and h2 are uniformly distributed over
// many keys using a chi-squared goodness of fit test on their top bits.
func TestHashUniformity(t *testing.T) {
	const (
		bins = 64
		n    = 64 * 1000
	)
	keySets := map[string]func(i int) int32{
		"sequential": func(i int) int32 { return int32(i) },
		"random":     func(i int) int32 { return int32(frand.Uint64n(1 << 32)) },
	}
	hashes := map[string]HashFunc{
		"murmur3": Murmur3,
		"xxhash":  XXHash,
	}
	for hashName, hash := range hashes {
		for keysName, genKey := range keySets {
			t.Run(hashName+"/"+keysName, func(t *testing.T) {
				obs1 := make([]float64, bins)
				obs2 := make([]float64, bins)
				exp := make([]float64, bins)
				for i := range exp {
					exp[i] = n / bins
				}
				for i := 0; i < n; i++ {
					h1, h2 := hashPair(genKey(i), DefaultSeeds, hash)
					obs1[h1>>26]++
					obs2[h2>>26]++
				}
				chi := distuv.ChiSquared{K: bins - 1}
				for _, obs := range [][]float64{obs1, obs2} {
					p := chi.Survival(stat.ChiSquare(obs, exp))
					require.Greater(t, p, 1e-6, "distribution: %v", obs)
				}
			})
		}
	}
}
