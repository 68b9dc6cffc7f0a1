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

import "github.com/cockroachdb/errors"

// Each slot in the table has a control byte which can have one of three
// states. The zero value is empty so that a freshly allocated arena needs no
// initialization.
type ctrl uint8

const (
	ctrlEmpty ctrl = iota
	ctrlFull
	// ctrlDeleted is a tombstone: a slot that once held an entry. Lookups
	// probe past tombstones, inserts reuse them.
	ctrlDeleted
)

func (c ctrl) String() string {
	switch c {
	case ctrlEmpty:
		return "empty"
	case ctrlFull:
		return "full"
	case ctrlDeleted:
		return "deleted"
	default:
		return "invalid"
	}
}

// Slot holds a key and value, or nothing.
type Slot[K Key, V any] struct {
	ctrl  ctrl
	key   K
	value V
}

// Occupied returns true if the slot holds an entry.
func (s *Slot[K, V]) Occupied() bool {
	return s.ctrl == ctrlFull
}

// Key returns the key held by the slot, or the zero key if the slot is not
// occupied.
func (s *Slot[K, V]) Key() K {
	return s.key
}

// Value returns the value held by the slot, or the zero value if the slot is
// not occupied.
func (s *Slot[K, V]) Value() V {
	return s.value
}

// SetValue overwrites the value of an occupied slot in place. Setting the
// value of a slot that holds no entry is a programming error and panics.
func (s *Slot[K, V]) SetValue(value V) {
	if s.ctrl != ctrlFull {
		panic(errors.AssertionFailedf("SetValue on %s slot", s.ctrl))
	}
	s.value = value
}

// BucketView is a read-only view of one bucket of a table. It is only valid
// until the next mutation of the table.
type BucketView[K Key, V any] struct {
	slots []Slot[K, V]
}

// Len returns the number of slots in the bucket.
func (v BucketView[K, V]) Len() int {
	return len(v.slots)
}

// At returns a copy of the i'th slot of the bucket. An out of range index
// indicates a logic error in the caller and panics.
func (v BucketView[K, V]) At(i int) Slot[K, V] {
	return v.slots[i]
}

// Used returns the number of occupied slots in the bucket.
func (v BucketView[K, V]) Used() int {
	var n int
	for i := range v.slots {
		if v.slots[i].ctrl == ctrlFull {
			n++
		}
	}
	return n
}

// All calls yield sequentially for each entry in the bucket, in slot order.
// If yield returns false, iteration stops.
func (v BucketView[K, V]) All(yield func(key K, value V) bool) {
	for i := range v.slots {
		if s := &v.slots[i]; s.ctrl == ctrlFull {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}
