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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is implemented by Table and ConcurrentTable.
type StatsSource interface {
	Stats() Stats
}

// Collector is a prometheus.Collector exporting the Stats of a table. Every
// scrape calls Stats, which scans all of the table's slots, and so must be
// serialized with mutations of a Table. A ConcurrentTable can be scraped at
// any time.
type Collector struct {
	source StatsSource

	entries       *prometheus.Desc
	capacity      *prometheus.Desc
	tombstones    *prometheus.Desc
	loadFactor    *prometheus.Desc
	bucketEntries *prometheus.Desc
	bucketSlots   *prometheus.Desc
	inserts       *prometheus.Desc
	insertProbes  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector for source with metric names prefixed by
// namespace, e.g. "<namespace>_table_entries".
func NewCollector(namespace string, source StatsSource) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "table", name), help, labels, nil)
	}
	return &Collector{
		source:        source,
		entries:       desc("entries", "Number of occupied slots."),
		capacity:      desc("capacity", "Total number of slots."),
		tombstones:    desc("tombstones", "Number of slots holding a deletion tombstone."),
		loadFactor:    desc("load_factor", "Fraction of slots that are occupied."),
		bucketEntries: desc("bucket_entries", "Number of occupied slots per bucket.", "bucket"),
		bucketSlots:   desc("bucket_slots", "Number of slots per bucket.", "bucket"),
		inserts:       desc("inserts_total", "Number of successful inserts."),
		insertProbes:  desc("insert_probes_total", "Number of slots inspected by inserts."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.capacity
	ch <- c.tombstones
	ch <- c.loadFactor
	ch <- c.bucketEntries
	ch <- c.bucketSlots
	ch <- c.inserts
	ch <- c.insertProbes
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Len))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.tombstones, prometheus.GaugeValue, float64(s.Tombstones))
	ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, s.LoadFactor)
	for i, b := range s.Buckets {
		bucket := strconv.Itoa(i)
		ch <- prometheus.MustNewConstMetric(c.bucketEntries, prometheus.GaugeValue, float64(b.Used), bucket)
		ch <- prometheus.MustNewConstMetric(c.bucketSlots, prometheus.GaugeValue, float64(b.Capacity), bucket)
	}
	ch <- prometheus.MustNewConstMetric(c.inserts, prometheus.CounterValue, float64(s.Inserts))
	ch <- prometheus.MustNewConstMetric(c.insertProbes, prometheus.CounterValue, float64(s.InsertProbes))
}
