// Copyright 2025 Edgeo SCADA
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

// Package store holds the latest decoded meter reading together with
// the monotonic poll counters. The poller is the single writer; the
// web handlers read concurrently.
package store

import (
	"sync"

	"github.com/edgeo-scada/meterwatch/meter"
)

// Snapshot is a consistent view of the store.
type Snapshot struct {
	Reading meter.Reading
	Reads   int64
	Errors  int64
}

// Store is the process-wide reading state.
type Store struct {
	mu      sync.RWMutex
	reading meter.Reading

	reads  int64
	errors int64
}

// New creates an empty store. The initial reading is invalid.
func New() *Store {
	return &Store{}
}

// Commit replaces the reading wholesale and counts a successful poll.
func (s *Store) Commit(r meter.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Valid = true
	s.reading = r
	s.reads++
}

// Fail marks the reading invalid and counts a failed poll. The numeric
// fields keep their previous values so the display can show the last
// known state; consumers must check Valid before trusting them.
func (s *Store) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reading.Valid = false
	s.errors++
}

// Snapshot returns the current reading and counters.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Reading: s.reading,
		Reads:   s.reads,
		Errors:  s.errors,
	}
}
