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
	"math"

	"github.com/cockroachdb/errors"
)

const (
	// defaultDelta is the fraction of slots the probe limit is tuned to leave
	// unreachable in the worst case.
	defaultDelta = 1.0 / 16
	// probeFactor scales log2(1/delta) into the per-bucket probe limit.
	probeFactor = 2
)

// config is the set of parameters shared by Table and ConcurrentTable. It is
// populated by options and validated before any memory is allocated.
type config[K Key, V any] struct {
	hash      HashFunc
	seeds     Seeds
	allocator Allocator[K, V]
	logger    *slog.Logger
	delta     float64
	// probeLimit is derived from delta unless set explicitly.
	probeLimit    int
	probeLimitSet bool
}

func makeConfig[K Key, V any](options []option[K, V]) (config[K, V], error) {
	c := config[K, V]{
		hash:      Murmur3,
		seeds:     DefaultSeeds,
		allocator: defaultAllocator[K, V]{},
		logger:    slog.New(slog.DiscardHandler),
		delta:     defaultDelta,
	}
	for _, op := range options {
		op.apply(&c)
	}

	switch {
	case c.hash == nil:
		return c, errors.Wrap(ErrConfiguration, "hash function must not be nil")
	case c.allocator == nil:
		return c, errors.Wrap(ErrConfiguration, "allocator must not be nil")
	case c.logger == nil:
		return c, errors.Wrap(ErrConfiguration, "logger must not be nil")
	case !(c.delta > 0 && c.delta < 1):
		return c, errors.Wrapf(ErrConfiguration, "delta must be in (0, 1), got %v", c.delta)
	case c.probeLimitSet && c.probeLimit < 1:
		return c, errors.Wrapf(ErrConfiguration, "probe limit must be positive, got %d", c.probeLimit)
	}
	if !c.probeLimitSet {
		c.probeLimit = probeLimitForDelta(c.delta)
	}
	return c, nil
}

// probeLimitForDelta returns the number of probes spent in each large bucket
// before moving on to the next one. Elastic hashing bounds the probes per
// bucket by O(log(1/delta)).
func probeLimitForDelta(delta float64) int {
	return max(1, probeFactor*int(math.Ceil(math.Log2(1/delta))))
}

// option provide an interface to do work on a table's configuration while it
// is being created.
type option[K Key, V any] interface {
	apply(c *config[K, V])
}

type hashOption[K Key, V any] struct {
	hash HashFunc
}

func (op hashOption[K, V]) apply(c *config[K, V]) {
	c.hash = op.hash
}

// WithHash is an option to specify the 32-bit hash family used to derive
// probe values. The default is Murmur3.
func WithHash[K Key, V any](hash HashFunc) option[K, V] {
	return hashOption[K, V]{hash}
}

type seedsOption[K Key, V any] struct {
	seeds Seeds
}

func (op seedsOption[K, V]) apply(c *config[K, V]) {
	c.seeds = op.seeds
}

// WithSeeds is an option to specify the seeds for the h1 and h2 hashes. The
// default is DefaultSeeds.
func WithSeeds[K Key, V any](seeds Seeds) option[K, V] {
	return seedsOption[K, V]{seeds}
}

// Allocator specifies an interface for allocating and releasing the slot
// arena backing a table. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots be
// freed then Close must be called in order to ensure FreeSlots is called.
type Allocator[K Key, V any] interface {
	// AllocSlots should return a zeroed slice equivalent to
	// make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots.
	FreeSlots(v []Slot[K, V])
}

type defaultAllocator[K Key, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

type allocatorOption[K Key, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(c *config[K, V]) {
	c.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a table.
func WithAllocator[K Key, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type loggerOption[K Key, V any] struct {
	logger *slog.Logger
}

func (op loggerOption[K, V]) apply(c *config[K, V]) {
	c.logger = op.logger
}

// WithLogger is an option to specify where a table reports its bucket layout,
// resizes and full conditions. Nothing is logged by default.
func WithLogger[K Key, V any](logger *slog.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}

type deltaOption[K Key, V any] struct {
	delta float64
}

func (op deltaOption[K, V]) apply(c *config[K, V]) {
	c.delta = op.delta
}

// WithDelta is an option to tune the probe limit to a target fraction of
// free slots: smaller values probe each bucket harder before falling through
// to the next. Delta must be in (0, 1) and defaults to 1/16.
func WithDelta[K Key, V any](delta float64) option[K, V] {
	return deltaOption[K, V]{delta}
}

type probeLimitOption[K Key, V any] struct {
	limit int
}

func (op probeLimitOption[K, V]) apply(c *config[K, V]) {
	c.probeLimit = op.limit
	c.probeLimitSet = true
}

// WithProbeLimit is an option to set the number of probes made in each large
// bucket directly, overriding WithDelta.
func WithProbeLimit[K Key, V any](limit int) option[K, V] {
	return probeLimitOption[K, V]{limit}
}
