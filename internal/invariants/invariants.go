// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants gates expensive consistency checks behind the
// "invariants" and "race" build tags.
package invariants

import "github.com/cockroachdb/errors"

// Check panics with an assertion failure if cond is false and invariants are
// enabled. It is a no-op otherwise, so callers may pass cheap conditions only;
// anything expensive belongs behind an explicit `if Enabled` block.
func Check(cond bool, format string, args ...interface{}) {
	if Enabled && !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

// CheckBounds panics if the index is not in the range [0, n). No-op in
// non-invariant builds.
func CheckBounds(i, n int) {
	if Enabled && (i < 0 || i >= n) {
		panic(errors.AssertionFailedf("index %d out of bounds [0, %d)", i, n))
	}
}
