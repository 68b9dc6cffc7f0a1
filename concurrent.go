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
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ConcurrentTable is a goroutine-safe variant of Table. The bucket layout is
// immutable after construction and each bucket is guarded by its own
// read-write mutex, which is held only while that bucket's part of a probe
// sequence is walked.
//
// Walks never observe a slot going from full back to empty: Delete leaves a
// tombstone, and Clear and Close, which do empty slots, hold the table-wide
// epoch lock exclusively and so never run while a walk is in flight. A lookup
// therefore cannot be cut short by a concurrent delete or clear. As with
// Table, Insert does not deduplicate keys; concurrent inserts of the same key
// may store it twice.
type ConcurrentTable[K Key, V any] struct {
	store[K, V]
	// epoch is held for reading for the duration of every walk and for
	// writing by Clear and Close. It also guards slots, layout and locks
	// against Close.
	epoch sync.RWMutex
	// locks[b] guards the slots of bucket b.
	locks        []sync.RWMutex
	used         atomic.Int64
	tombstones   atomic.Int64
	inserts      atomic.Uint64
	insertProbes atomic.Uint64
}

// NewConcurrent constructs a new ConcurrentTable with the specified fixed
// capacity.
func NewConcurrent[K Key, V any](
	capacity int, options ...option[K, V],
) (*ConcurrentTable[K, V], error) {
	s, err := makeStore(capacity, options)
	if err != nil {
		return nil, err
	}
	return &ConcurrentTable[K, V]{
		store: s,
		locks: make([]sync.RWMutex, s.layout.buckets()),
	}, nil
}

// Insert inserts an entry into the table. See Table.Insert.
func (t *ConcurrentTable[K, V]) Insert(key K, value V) error {
	pv := t.hashKey(key)
	t.epoch.RLock()
	defer t.epoch.RUnlock()
	var probes int
	for b := range t.locks {
		mu := &t.locks[b]
		mu.Lock()
		i, p, ok := t.freeBucket(pv, b)
		probes += p
		if ok {
			reused := t.place(i, key, value)
			mu.Unlock()
			if reused {
				t.tombstones.Add(-1)
			}
			t.used.Add(1)
			t.inserts.Add(1)
			t.insertProbes.Add(uint64(probes))
			return nil
		}
		mu.Unlock()
	}

	t.insertProbes.Add(uint64(probes))
	t.logger.Debug("elastic: probe sequence exhausted",
		slog.Any("key", key),
		slog.Int("probes", probes),
		slog.Int("capacity", t.layout.capacity))
	return errors.Wrapf(ErrTableFull, "inserting %v: no free slot after %d probes", key, probes)
}

// Get retrieves the value from the table for the specified key, return
// ok=false if the key is not present.
func (t *ConcurrentTable[K, V]) Get(key K) (value V, ok bool) {
	pv := t.hashKey(key)
	t.epoch.RLock()
	defer t.epoch.RUnlock()
	for b := range t.locks {
		mu := &t.locks[b]
		mu.RLock()
		i, found, stop := t.lookupBucket(pv, b, key)
		if found {
			value = t.slots[i].value
		}
		mu.RUnlock()
		if stop {
			return value, found
		}
	}
	return value, false
}

// Delete deletes the entry corresponding to the specified key from the
// table, returning true if an entry was deleted.
func (t *ConcurrentTable[K, V]) Delete(key K) bool {
	pv := t.hashKey(key)
	t.epoch.RLock()
	defer t.epoch.RUnlock()
	for b := range t.locks {
		mu := &t.locks[b]
		mu.Lock()
		i, found, stop := t.lookupBucket(pv, b, key)
		if found {
			t.remove(i)
		}
		mu.Unlock()
		if found {
			t.used.Add(-1)
			t.tombstones.Add(1)
		}
		if stop {
			return found
		}
	}
	return false
}

// All calls yield sequentially for each key and value present in the table.
// Each bucket is copied under its read lock and yield is invoked without any
// lock held, so yield may mutate the table. Entries inserted or deleted
// concurrently may or may not be observed.
func (t *ConcurrentTable[K, V]) All(yield func(key K, value V) bool) {
	var buf []Slot[K, V]
	for b := 0; ; b++ {
		if !t.copyBucket(b, &buf) {
			return
		}

		for i := range buf {
			if s := &buf[i]; s.ctrl == ctrlFull {
				if !yield(s.key, s.value) {
					return
				}
			}
		}
	}
}

// copyBucket copies the slots of bucket b into buf, returning false if the
// table has no such bucket.
func (t *ConcurrentTable[K, V]) copyBucket(b int, buf *[]Slot[K, V]) bool {
	t.epoch.RLock()
	defer t.epoch.RUnlock()
	if b >= len(t.locks) {
		return false
	}
	mu := &t.locks[b]
	mu.RLock()
	start, end := t.layout.bounds(b)
	*buf = append((*buf)[:0], t.slots[start:end]...)
	mu.RUnlock()
	return true
}

// Clear deletes all entries from the table. It waits for in-flight
// operations to complete.
func (t *ConcurrentTable[K, V]) Clear() {
	t.epoch.Lock()
	defer t.epoch.Unlock()
	clear(t.slots)
	t.used.Store(0)
	t.tombstones.Store(0)
}

// Close releases the table's slots back to the configured allocator. A
// closed table is empty with no capacity: Insert returns ErrTableFull and Get
// finds nothing. Close is idempotent.
func (t *ConcurrentTable[K, V]) Close() {
	t.epoch.Lock()
	defer t.epoch.Unlock()
	if t.slots != nil {
		t.allocator.FreeSlots(t.slots)
	}
	t.slots = nil
	t.layout = layout{}
	t.locks = nil
	t.used.Store(0)
	t.tombstones.Store(0)
}

// Len returns the number of entries in the table.
func (t *ConcurrentTable[K, V]) Len() int {
	return int(t.used.Load())
}

// Capacity returns the total number of slots in the table.
func (t *ConcurrentTable[K, V]) Capacity() int {
	t.epoch.RLock()
	defer t.epoch.RUnlock()
	return t.layout.capacity
}

// BucketCount returns the number of buckets the slots are partitioned into.
func (t *ConcurrentTable[K, V]) BucketCount() int {
	t.epoch.RLock()
	defer t.epoch.RUnlock()
	return t.layout.buckets()
}

// HashKey returns the probe value of key under the table's hash function and
// seeds.
func (t *ConcurrentTable[K, V]) HashKey(key K) ProbeValue {
	return t.hashKey(key)
}

// Stats returns the table's occupancy and probe statistics. Buckets are
// scanned one at a time, so the result is not an atomic snapshot of the
// whole table.
func (t *ConcurrentTable[K, V]) Stats() Stats {
	s := Stats{
		Inserts:      t.inserts.Load(),
		InsertProbes: t.insertProbes.Load(),
	}
	t.epoch.RLock()
	defer t.epoch.RUnlock()
	for b := range t.locks {
		t.locks[b].RLock()
		bs := t.bucketStats(b)
		t.locks[b].RUnlock()
		s.add(bs)
	}
	return s
}
