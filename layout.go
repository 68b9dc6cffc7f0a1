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
	"math/bits"

	"github.com/cockroachdb/errors"
)

// layout partitions a backing store of capacity slots into buckets whose
// sizes halve (rounding up) at each step:
//
//	capacity=10:  [0 1 2 3 4 | 5 6 7 | 8 9]
//	               bucket 0    1       2
//
// Bucket 0 is the largest and is probed first. The sizes always sum to the
// capacity exactly; the last bucket absorbs the rounding remainder. A layout
// is immutable once built.
type layout struct {
	// offsets[i] is the index of the first slot of bucket i. The bucket ends
	// at offsets[i+1], or at capacity for the last bucket.
	offsets  []int
	capacity int
}

func makeLayout(capacity int) (layout, error) {
	if capacity <= 0 {
		return layout{}, errors.Wrapf(ErrConfiguration, "capacity must be positive, got %d", capacity)
	}

	l := layout{
		offsets:  make([]int, 0, bits.Len(uint(capacity))+1),
		capacity: capacity,
	}
	for current, remaining, offset := (capacity+1)/2, capacity, 0; remaining > 0; current = (current + 1) / 2 {
		// NB: current can overshoot the remaining slots (capacity=9 proposes
		// 5, 3, 2 with only 1 slot left for the last bucket), so the final
		// bucket is clamped.
		size := min(current, remaining)
		l.offsets = append(l.offsets, offset)
		offset += size
		remaining -= size
	}
	return l, nil
}

// buckets returns the number of buckets.
func (l *layout) buckets() int {
	return len(l.offsets)
}

// bounds returns the half-open slot range [start, end) of bucket i. The
// caller must ensure i is in range.
func (l *layout) bounds(i int) (start, end int) {
	start = l.offsets[i]
	if i+1 < len(l.offsets) {
		return start, l.offsets[i+1]
	}
	return start, l.capacity
}

// size returns the number of slots in bucket i.
func (l *layout) size(i int) int {
	start, end := l.bounds(i)
	return end - start
}

// sizes returns the size of every bucket in probe order.
func (l *layout) sizes() []int {
	r := make([]int, l.buckets())
	for i := range r {
		r[i] = l.size(i)
	}
	return r
}

// bucketOf returns the bucket containing slot index i.
func (l *layout) bucketOf(i int) int {
	// Half of all slots live in bucket 0 and a quarter in bucket 1, so a
	// linear scan from the front terminates quickly on average.
	for b := 1; b < len(l.offsets); b++ {
		if i < l.offsets[b] {
			return b - 1
		}
	}
	return len(l.offsets) - 1
}
