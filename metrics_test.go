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
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	m, err := New[int32, int32](10)
	require.NoError(t, err)
	for i := int32(0); i < 4; i++ {
		require.NoError(t, m.Insert(i, i))
	}
	require.True(t, m.Delete(0))

	c := NewCollector("test", m)
	// 4 table-wide gauges, 2 per bucket, 2 counters.
	require.Equal(t, 4+2*m.BucketCount()+2, testutil.CollectAndCount(c))
	require.Equal(t, m.BucketCount(), testutil.CollectAndCount(c, "test_table_bucket_slots"))

	const expected = `
# HELP test_table_bucket_slots Number of slots per bucket.
# TYPE test_table_bucket_slots gauge
test_table_bucket_slots{bucket="0"} 5
test_table_bucket_slots{bucket="1"} 3
test_table_bucket_slots{bucket="2"} 2
# HELP test_table_capacity Total number of slots.
# TYPE test_table_capacity gauge
test_table_capacity 10
# HELP test_table_entries Number of occupied slots.
# TYPE test_table_entries gauge
test_table_entries 3
# HELP test_table_inserts_total Number of successful inserts.
# TYPE test_table_inserts_total counter
test_table_inserts_total 4
# HELP test_table_tombstones Number of slots holding a deletion tombstone.
# TYPE test_table_tombstones gauge
test_table_tombstones 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"test_table_bucket_slots",
		"test_table_capacity",
		"test_table_entries",
		"test_table_inserts_total",
		"test_table_tombstones",
	))

	// The collector reflects later mutations.
	require.NoError(t, m.Insert(100, 100))
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP test_table_entries Number of occupied slots.
# TYPE test_table_entries gauge
test_table_entries 4
`), "test_table_entries"))
}

func TestCollectorRegistry(t *testing.T) {
	m, err := NewConcurrent[uint64, string](100)
	require.NoError(t, err)
	require.NoError(t, m.Insert(1, "one"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector("elastic", m)))

	n, err := testutil.GatherAndCount(reg, "elastic_table_entries", "elastic_table_load_factor")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "elastic_table_load_factor" {
			require.InDelta(t, 0.01, f.GetMetric()[0].GetGauge().GetValue(), 1e-9)
		}
	}
}
