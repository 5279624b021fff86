// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package backend provides the byte-oriented key/value stores that cached
// block structures are written to.
package backend

import (
	"context"
	"time"
)

// Backend is a key/value store with per-entry expiry. No transactional
// guarantees are required: concurrent writers to one key race and the last
// one wins.
type Backend interface {
	// Get returns the value stored under key. A missing or expired key
	// returns false and no error. Errors indicate that the backend is
	// unavailable.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A non-positive ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
