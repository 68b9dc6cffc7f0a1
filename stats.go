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

// Stats is a point-in-time summary of a table's occupancy and probing.
type Stats struct {
	// Len is the number of entries in the table.
	Len int
	// Capacity is the total number of slots.
	Capacity int
	// Tombstones is the number of slots left behind by deletes.
	Tombstones int
	// LoadFactor is Len/Capacity.
	LoadFactor float64
	// Buckets holds per-bucket occupancy, in probe order.
	Buckets []BucketStats
	// Inserts is the number of successful inserts since the table was
	// created.
	Inserts uint64
	// InsertProbes is the number of slots inspected by inserts, including
	// inserts that failed with ErrTableFull.
	InsertProbes uint64
}

// BucketStats describes the occupancy of a single bucket.
type BucketStats struct {
	Capacity   int
	Used       int
	Tombstones int
}

// MeanInsertProbes returns the average number of slots inspected per
// successful insert.
func (s Stats) MeanInsertProbes() float64 {
	if s.Inserts == 0 {
		return 0
	}
	return float64(s.InsertProbes) / float64(s.Inserts)
}

func (s *Stats) add(bs BucketStats) {
	s.Buckets = append(s.Buckets, bs)
	s.Len += bs.Used
	s.Capacity += bs.Capacity
	s.Tombstones += bs.Tombstones
	if s.Capacity > 0 {
		s.LoadFactor = float64(s.Len) / float64(s.Capacity)
	}
}
