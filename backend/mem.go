// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package backend

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/swiss"
)

type memEntry struct {
	value   []byte
	expires time.Time
}

// Mem is an in-process Backend.
type Mem struct {
	now func() time.Time
	mu  struct {
		sync.Mutex
		entries swiss.Map[string, memEntry]
	}
}

var _ Backend = (*Mem)(nil)

// MemOption configures a Mem.
type MemOption func(*Mem)

// WithClock overrides the clock used to evaluate expiry.
func WithClock(now func() time.Time) MemOption {
	return func(m *Mem) { m.now = now }
}

// NewMem returns an empty in-process backend.
func NewMem(opts ...MemOption) *Mem {
	m := &Mem{now: time.Now}
	for _, o := range opts {
		o(m)
	}
	m.mu.entries.Init(16)
	return m
}

// Get implements Backend. Expired entries are dropped lazily.
func (m *Mem) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.mu.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.entries.Delete(key)
		return nil, false, nil
	}
	return slices.Clone(e.value), true, nil
}

// Set implements Backend.
func (m *Mem) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := memEntry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.entries.Put(key, e)
	return nil
}

// Delete implements Backend.
func (m *Mem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.entries.Delete(key)
	return nil
}

// Len returns the number of stored entries, including expired entries that
// have not been dropped yet.
func (m *Mem) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.entries.Len()
}
