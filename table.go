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

// Package elastic is a Go implementation of the bucket layout and probing of
// elastic hashing, as described in "Optimal Bounds for Open Addressing
// Without Reordering" (Farach-Colton, Krapivin, Kuszmaul, 2025):
// https://arxiv.org/abs/2501.02305.
//
// # Layout
//
// A table of capacity N is a single contiguous array of slots partitioned
// into buckets whose sizes halve, rounding up, at every step. N=10 yields
// buckets of 5, 3 and 2 slots. The sizes always sum to N. Bucket 0 is the
// largest and is probed first; most keys land there, and the geometrically
// shrinking tail absorbs the keys that do not, which is what lets the table
// fill to very high load factors while keeping expected probe lengths low.
//
// # Probing
//
// A key is hashed twice, with two distinct seeds, by a 32-bit hash
// (MurmurHash3 by default). The two hashes h1 and h2 are combined by the
// pairing function Phi into a single probe value of up to 97 bits:
//
//	Phi(a, b) = [1 b₁ 1 b₂ ... 1 bₖ] 0 [a₁ ... aₘ]
//
// where bᵢ and aᵢ are the significant bits of b and a. The probe value
// deterministically generates the candidate slots of every bucket: a bucket
// larger than the probe limit gets probeLimit pseudo-random candidates mixed
// from the probe value, the bucket index and the attempt number, while the
// last bucket and any bucket no larger than the probe limit are scanned
// linearly from a hashed starting offset.
//
// Insert takes the first candidate slot that is not full. Lookup and Delete
// walk the same sequence and stop at the first matching entry or the first
// empty slot. Deletion leaves a tombstone so that entries further along a
// probe sequence remain reachable; tombstones are reused by inserts and
// dropped by Resize.
//
// The probe limit is 2*ceil(log2(1/delta)) with delta = 1/16 by default,
// mirroring the O(log(1/delta)) per-bucket probe budget of the paper. Unlike
// the paper's insertion strategy, which consults the current fill of the
// buckets, the budget here is fixed so that a lookup can reproduce the exact
// sequence an insert walked.
//
// A Table never grows on its own: an Insert that exhausts its probe
// sequence returns ErrTableFull, and the caller decides whether to Resize.
package elastic

import (
	"log/slog"

	"github.com/cockroachdb/errors"
)

// Table is an open-addressing hash table from fixed-width integer keys to
// values, laid out as elastic hashing buckets over a single slot arena.
//
// A Table is NOT goroutine-safe. See ConcurrentTable.
type Table[K Key, V any] struct {
	store[K, V]
	// The number of full slots (i.e. the number of elements in the table).
	used int
	// The number of deleted slots.
	tombstones int
	// Successful inserts, and the probes made by all inserts.
	inserts      uint64
	insertProbes uint64
}

// New constructs a new Table with the specified fixed capacity. A capacity
// of zero (or less) is a configuration error.
func New[K Key, V any](capacity int, options ...option[K, V]) (*Table[K, V], error) {
	s, err := makeStore(capacity, options)
	if err != nil {
		return nil, err
	}
	t := &Table[K, V]{store: s}
	t.checkInvariants(t.used, t.tombstones)
	return t, nil
}

// Close closes the table, releasing its slots back to the configured
// allocator. It is unnecessary to close a table using the default allocator.
// It is invalid to use a Table after it has been closed, though Close itself
// is idempotent.
func (t *Table[K, V]) Close() {
	if t.slots != nil {
		t.allocator.FreeSlots(t.slots)
	}
	t.slots = nil
	t.layout = layout{}
	t.used = 0
	t.tombstones = 0
}

// Insert inserts an entry into the table. Insert does not check whether the
// key is already present: inserting a key twice stores two entries, and which
// one Get returns is unspecified. Use Put to overwrite.
//
// If no free slot is found in the key's probe sequence an error matching
// ErrTableFull is returned and the table is unchanged.
func (t *Table[K, V]) Insert(key K, value V) error {
	return t.insert(t.hashKey(key), key, value)
}

func (t *Table[K, V]) insert(pv ProbeValue, key K, value V) error {
	i, probes, ok := t.findFree(pv)
	t.insertProbes += uint64(probes)
	if !ok {
		t.logger.Debug("elastic: probe sequence exhausted",
			slog.Any("key", key),
			slog.Int("probes", probes),
			slog.Int("used", t.used),
			slog.Int("capacity", t.layout.capacity))
		return errors.Wrapf(ErrTableFull, "inserting %v: no free slot after %d probes (%d/%d used)",
			key, probes, t.used, t.layout.capacity)
	}
	if t.place(i, key, value) {
		t.tombstones--
	}
	t.used++
	t.inserts++
	t.checkInvariants(t.used, t.tombstones)
	return nil
}

// Put inserts an entry into the table, overwriting an existing value if an
// entry with the same key already exists.
func (t *Table[K, V]) Put(key K, value V) error {
	pv := t.hashKey(key)
	if i, ok := t.find(pv, key); ok {
		t.slots[i].value = value
		t.checkInvariants(t.used, t.tombstones)
		return nil
	}
	return t.insert(pv, key, value)
}

// Get retrieves the value from the table for the specified key, return
// ok=false if the key is not present.
func (t *Table[K, V]) Get(key K) (value V, ok bool) {
	if i, ok := t.find(t.hashKey(key), key); ok {
		return t.slots[i].value, true
	}
	return value, false
}

// Delete deletes the entry corresponding to the specified key from the
// table, returning true if an entry was deleted. It is a noop to delete a
// non-existent key.
func (t *Table[K, V]) Delete(key K) bool {
	i, ok := t.find(t.hashKey(key), key)
	if !ok {
		return false
	}
	t.remove(i)
	t.used--
	t.tombstones++
	t.checkInvariants(t.used, t.tombstones)
	return true
}

// All calls yield sequentially for each key and value present in the table,
// in slot order. If yield returns false, iteration stops. The table can be
// mutated during iteration, though there is no guarantee that the mutations
// will be visible to the iteration.
func (t *Table[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the slots so that iteration remains valid if the table is
	// resized during iteration.
	slots := t.slots
	for i := range slots {
		if s := &slots[i]; s.ctrl == ctrlFull {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Clear deletes all entries from the table, retaining its capacity and
// layout.
func (t *Table[K, V]) Clear() {
	clear(t.slots)
	t.used = 0
	t.tombstones = 0
	t.checkInvariants(t.used, t.tombstones)
}

// Resize reallocates the table with the specified capacity, repartitions it
// into buckets and reinserts every entry, dropping all tombstones. Resizing
// to the current capacity rebuilds the table in place.
//
// If an entry cannot be placed in the new layout an error matching
// ErrTableFull is returned and the table is left as it was.
func (t *Table[K, V]) Resize(capacity int) error {
	l, err := makeLayout(capacity)
	if err != nil {
		return err
	}

	oldLayout, oldSlots := t.layout, t.slots
	oldUsed, oldTombstones := t.used, t.tombstones
	t.layout, t.slots = l, t.allocSlots(capacity)
	t.used, t.tombstones = 0, 0

	for i := range oldSlots {
		s := &oldSlots[i]
		if s.ctrl != ctrlFull {
			continue
		}
		j, _, ok := t.findFree(t.hashKey(s.key))
		if !ok {
			t.allocator.FreeSlots(t.slots)
			t.layout, t.slots = oldLayout, oldSlots
			t.used, t.tombstones = oldUsed, oldTombstones
			return errors.Wrapf(ErrTableFull, "resizing %d entries from %d to %d slots",
				oldUsed, oldLayout.capacity, capacity)
		}
		t.place(j, s.key, s.value)
		t.used++
	}

	if oldSlots != nil {
		t.allocator.FreeSlots(oldSlots)
	}
	t.logger.Debug("elastic: resized",
		slog.Int("from", oldLayout.capacity),
		slog.Int("to", capacity),
		slog.Int("entries", t.used),
		slog.Int("tombstones-dropped", oldTombstones),
		slog.Any("sizes", l.sizes()))
	t.checkInvariants(t.used, t.tombstones)
	return nil
}

// Len returns the number of entries in the table.
func (t *Table[K, V]) Len() int {
	return t.used
}

// Capacity returns the total number of slots in the table.
func (t *Table[K, V]) Capacity() int {
	return t.layout.capacity
}

// BucketCount returns the number of buckets the slots are partitioned into.
func (t *Table[K, V]) BucketCount() int {
	return t.layout.buckets()
}

// Bucket returns a read-only view of bucket i. If i is out of range an empty
// view is returned; use LookupBucket to distinguish a missing bucket from an
// empty one.
func (t *Table[K, V]) Bucket(i int) BucketView[K, V] {
	v, _ := t.bucketView(i)
	return v
}

// LookupBucket returns a read-only view of bucket i, return ok=false if the
// table has no such bucket.
func (t *Table[K, V]) LookupBucket(i int) (BucketView[K, V], bool) {
	return t.bucketView(i)
}

// BucketMut returns the slots of bucket i for in-place value updates via
// Slot.SetValue. If i is out of range an empty slice is returned. The slice
// is only valid until the next Resize or Close.
func (t *Table[K, V]) BucketMut(i int) []Slot[K, V] {
	v, _ := t.bucketView(i)
	return v.slots
}

// HashKey returns the probe value of key under the table's hash function and
// seeds. Higher layers can use it to recompute probe sequences.
func (t *Table[K, V]) HashKey(key K) ProbeValue {
	return t.hashKey(key)
}

// Stats returns the table's occupancy and probe statistics. It scans every
// slot.
func (t *Table[K, V]) Stats() Stats {
	s := Stats{
		Inserts:      t.inserts,
		InsertProbes: t.insertProbes,
	}
	for b, n := 0, t.layout.buckets(); b < n; b++ {
		s.add(t.bucketStats(b))
	}
	return s
}
