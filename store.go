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
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

const debug = false

// store is the slot arena and bucket layout shared by Table and
// ConcurrentTable, along with the probe walks over it. The walks are
// procedural: the only state is the immutable layout and the control byte of
// each slot.
type store[K Key, V any] struct {
	config[K, V]
	layout layout
	slots  []Slot[K, V]
}

func makeStore[K Key, V any](capacity int, options []option[K, V]) (store[K, V], error) {
	c, err := makeConfig(options)
	if err != nil {
		return store[K, V]{}, err
	}
	l, err := makeLayout(capacity)
	if err != nil {
		return store[K, V]{}, err
	}
	s := store[K, V]{
		config: c,
		layout: l,
		slots:  c.allocSlots(capacity),
	}
	c.logger.Debug("elastic: partitioned slots into buckets",
		slog.Int("capacity", capacity),
		slog.Int("buckets", l.buckets()),
		slog.Any("sizes", l.sizes()),
		slog.Int("probe-limit", c.probeLimit))
	return s, nil
}

func (c *config[K, V]) allocSlots(n int) []Slot[K, V] {
	slots := c.allocator.AllocSlots(n)
	if len(slots) != n {
		panic(errors.AssertionFailedf("allocator returned %d slots, expected %d", len(slots), n))
	}
	return slots
}

func (s *store[K, V]) hashKey(key K) ProbeValue {
	return HashKey(key, s.seeds, s.hash)
}

// probeSeq returns the offset of bucket b within the arena and the probe
// sequence of pv within that bucket.
func (s *store[K, V]) probeSeq(pv ProbeValue, b int) (start int, seq probeSeq) {
	start, end := s.layout.bounds(b)
	return start, makeProbeSeq(pv, b, end-start, s.probeLimit, b == s.layout.buckets()-1)
}

// lookupBucket walks the probe sequence of pv within bucket b looking for
// key. If the key is found its slot index is returned with found=true. If an
// empty slot is encountered first the walk of the entire table is over and
// stop=true is returned.
func (s *store[K, V]) lookupBucket(pv ProbeValue, b int, key K) (i int, found, stop bool) {
	start, seq := s.probeSeq(pv, b)
	if debug {
		s.logger.Debug("lookup(bucket)", slog.Any("key", key), slog.String("seq", seq.String()))
	}

	for ; !seq.done(); seq = seq.next() {
		i = start + seq.offset
		slot := &s.slots[i]
		switch slot.ctrl {
		case ctrlEmpty:
			if debug {
				s.logger.Debug("lookup(not-found)", slog.Any("key", key), slog.Int("index", i))
			}
			return i, false, true
		case ctrlFull:
			if slot.key == key {
				return i, true, true
			}
		}
	}
	return -1, false, false
}

// find returns the index of the slot holding key.
func (s *store[K, V]) find(pv ProbeValue, key K) (int, bool) {
	for b, n := 0, s.layout.buckets(); b < n; b++ {
		if i, found, stop := s.lookupBucket(pv, b, key); stop {
			return i, found
		}
	}
	return -1, false
}

// freeBucket returns the index of the first slot in the probe sequence of pv
// within bucket b that is not full, along with the number of probes made.
func (s *store[K, V]) freeBucket(pv ProbeValue, b int) (i, probes int, ok bool) {
	start, seq := s.probeSeq(pv, b)
	for ; !seq.done(); seq = seq.next() {
		probes++
		i = start + seq.offset
		if s.slots[i].ctrl != ctrlFull {
			if debug {
				s.logger.Debug("insert(free)", slog.Int("index", i), slog.String("seq", seq.String()))
			}
			return i, probes, true
		}
	}
	return -1, probes, false
}

// findFree walks the buckets from largest to smallest and returns the first
// slot that is not full.
func (s *store[K, V]) findFree(pv ProbeValue) (i, probes int, ok bool) {
	for b, n := 0, s.layout.buckets(); b < n; b++ {
		j, p, ok := s.freeBucket(pv, b)
		probes += p
		if ok {
			return j, probes, true
		}
	}
	return -1, probes, false
}

// place stores an entry in slot i, which must not be full. It returns true
// if the slot was a tombstone.
func (s *store[K, V]) place(i int, key K, value V) (reused bool) {
	slot := &s.slots[i]
	if slot.ctrl == ctrlFull {
		panic(errors.AssertionFailedf("placing key in full slot %d", i))
	}
	reused = slot.ctrl == ctrlDeleted
	*slot = Slot[K, V]{ctrl: ctrlFull, key: key, value: value}
	return reused
}

// remove turns the full slot i into a tombstone.
func (s *store[K, V]) remove(i int) {
	s.slots[i] = Slot[K, V]{ctrl: ctrlDeleted}
}

func (s *store[K, V]) bucketView(b int) (BucketView[K, V], bool) {
	if b < 0 || b >= s.layout.buckets() {
		return BucketView[K, V]{}, false
	}
	start, end := s.layout.bounds(b)
	return BucketView[K, V]{slots: s.slots[start:end:end]}, true
}

func (s *store[K, V]) bucketStats(b int) BucketStats {
	start, end := s.layout.bounds(b)
	bs := BucketStats{Capacity: end - start}
	for i := start; i < end; i++ {
		switch s.slots[i].ctrl {
		case ctrlFull:
			bs.Used++
		case ctrlDeleted:
			bs.Tombstones++
		}
	}
	return bs
}

func (s *store[K, V]) checkInvariants(used, tombstones int) {
	if invariants {
		if len(s.slots) != s.layout.capacity {
			panic(fmt.Sprintf("invariant failed: %d slots, but capacity is %d", len(s.slots), s.layout.capacity))
		}
		var sum int
		for b, n := 0, s.layout.buckets(); b < n; b++ {
			size := s.layout.size(b)
			if size <= 0 || (b > 0 && size > s.layout.size(b-1)) {
				panic(fmt.Sprintf("invariant failed: bucket %d has size %d\n%s", b, size, s.debugString()))
			}
			sum += size
		}
		if sum != s.layout.capacity {
			panic(fmt.Sprintf("invariant failed: bucket sizes sum to %d, but capacity is %d", sum, s.layout.capacity))
		}

		// For every full slot, verify we can retrieve the key using find.
		// Count the number of used and deleted slots.
		var foundUsed, foundDeleted int
		for i := range s.slots {
			slot := &s.slots[i]
			switch slot.ctrl {
			case ctrlEmpty:
			case ctrlDeleted:
				foundDeleted++
			case ctrlFull:
				foundUsed++
				// Duplicate keys are permitted, so find may land on an
				// earlier slot holding the same key.
				if j, ok := s.find(s.hashKey(slot.key), slot.key); !ok || s.slots[j].key != slot.key {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v not found\n%s", i, slot.key, s.debugString()))
				}
			default:
				panic(fmt.Sprintf("invariant failed: slot(%d): invalid ctrl %02x", i, uint8(slot.ctrl)))
			}
		}
		if foundUsed != used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				foundUsed, used, s.debugString()))
		}
		if foundDeleted != tombstones {
			panic(fmt.Sprintf("invariant failed: found %d deleted slots, but tombstone count is %d\n%s",
				foundDeleted, tombstones, s.debugString()))
		}
	}
}

func (s *store[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  buckets=%v  probe-limit=%d\n",
		s.layout.capacity, s.layout.sizes(), s.probeLimit)
	for i := range s.slots {
		switch slot := &s.slots[i]; slot.ctrl {
		case ctrlFull:
			fmt.Fprintf(&buf, "  %4d: [bucket=%d] %v\n", i, s.layout.bucketOf(i), slot.key)
		default:
			fmt.Fprintf(&buf, "  %4d: [bucket=%d] %s\n", i, s.layout.bucketOf(i), slot.ctrl)
		}
	}
	return buf.String()
}
