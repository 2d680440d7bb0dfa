// Copyright 2025 Kadir Pekel
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

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store persists per-identifier window counters. Implementations must be
// safe for concurrent use.
type Store interface {
	// GetUsage returns the current amount and window end. An unknown or
	// expired window reports 0 and a fresh window end.
	GetUsage(ctx context.Context, identifier string, window TimeWindow) (int64, time.Time, error)

	// IncrementUsage adds amount, starting a new window if the current one
	// has expired.
	IncrementUsage(ctx context.Context, identifier string, window TimeWindow, amount int64) (int64, time.Time, error)

	DeleteUsage(ctx context.Context, identifier string) error
	DeleteExpired(ctx context.Context, before time.Time) error
	Close() error
}

type usageKey struct {
	Identifier string
	Window     TimeWindow
}

type usageRecord struct {
	Amount    int64
	WindowEnd time.Time
}

// MemoryStore is an in-memory Store for single-instance deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[usageKey]*usageRecord
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[usageKey]*usageRecord),
		now:  time.Now,
	}
}

func (s *MemoryStore) GetUsage(_ context.Context, identifier string, window TimeWindow) (int64, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	record, ok := s.data[usageKey{identifier, window}]
	if !ok || !record.WindowEnd.After(now) {
		return 0, now.Add(window.Duration()), nil
	}
	return record.Amount, record.WindowEnd, nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, identifier string, window TimeWindow, amount int64) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := usageKey{identifier, window}
	record, ok := s.data[key]
	switch {
	case !ok:
		record = &usageRecord{Amount: amount, WindowEnd: now.Add(window.Duration())}
		s.data[key] = record
	case !record.WindowEnd.After(now):
		record.Amount = amount
		record.WindowEnd = now.Add(window.Duration())
	default:
		record.Amount += amount
	}
	return record.Amount, record.WindowEnd, nil
}

func (s *MemoryStore) DeleteUsage(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.data {
		if key.Identifier == identifier {
			delete(s.data, key)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, record := range s.data {
		if record.WindowEnd.Before(before) {
			delete(s.data, key)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[usageKey]*usageRecord)
	return nil
}

// Size returns the number of live records.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
