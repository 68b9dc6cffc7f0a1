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

var (
	// ErrConfiguration is returned when a table is constructed with invalid
	// parameters, e.g. a zero capacity. It is not retryable.
	ErrConfiguration = errors.New("elastic: invalid configuration")

	// ErrTableFull is returned by Insert when the probe sequence of a key has
	// been exhausted across every bucket without finding a free slot. The
	// table does not grow on its own: the caller must Resize or reject the
	// write.
	ErrTableFull = errors.New("elastic: table full")
)
