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
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	testCases := []struct {
		capacity int
		expected []int
	}{
		{1, []int{1}},
		{2, []int{1, 1}},
		{3, []int{2, 1}},
		{4, []int{2, 1, 1}},
		{5, []int{3, 2}},
		{7, []int{4, 2, 1}},
		{9, []int{5, 3, 1}},
		{10, []int{5, 3, 2}},
		{16, []int{8, 4, 2, 1, 1}},
		{100, []int{50, 25, 13, 7, 4, 1}},
		{1000, []int{500, 250, 125, 63, 32, 16, 8, 4, 2}},
		{1024, []int{512, 256, 128, 64, 32, 16, 8, 4, 2, 1, 1}},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprint(c.capacity), func(t *testing.T) {
			l, err := makeLayout(c.capacity)
			require.NoError(t, err)
			require.Equal(t, c.expected, l.sizes())
			require.Equal(t, len(c.expected), l.buckets())
		})
	}
}

func TestLayoutInvariants(t *testing.T) {
	for capacity := 1; capacity <= 5000; capacity++ {
		l, err := makeLayout(capacity)
		require.NoError(t, err)

		var sum int
		for b := 0; b < l.buckets(); b++ {
			start, end := l.bounds(b)
			require.Equal(t, sum, start, "capacity=%d bucket=%d", capacity, b)
			require.Less(t, start, end)
			if b > 0 {
				require.LessOrEqual(t, l.size(b), l.size(b-1), "capacity=%d bucket=%d", capacity, b)
			}
			sum = end
		}
		require.Equal(t, capacity, sum)

		maxBuckets := int(math.Ceil(math.Log2(float64(capacity)))) + 1
		require.LessOrEqual(t, l.buckets(), maxBuckets, "capacity=%d", capacity)
	}
}

func TestLayoutInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, math.MinInt} {
		_, err := makeLayout(capacity)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrConfiguration), "%v", err)
	}
}

func TestLayoutBucketOf(t *testing.T) {
	l, err := makeLayout(100)
	require.NoError(t, err)
	for b := 0; b < l.buckets(); b++ {
		start, end := l.bounds(b)
		for i := start; i < end; i++ {
			require.Equal(t, b, l.bucketOf(i), "slot %d", i)
		}
	}
}
