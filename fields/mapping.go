// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package fields implements columnar per-block value stores.
//
// A Values store holds one column per field name. Every column has one slot
// per block, and the slot for a block is found through an IndexMapping, which
// assigns dense indexes to a sorted set of block keys. A nil slot means the
// field is declared but not populated for that block.
//
// The field-major layout keeps sparse, low-cardinality annotations compact
// once serialized.
package fields

import (
	"slices"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
)

// BlockKey exports the base.BlockKey type.
type BlockKey = base.BlockKey

// IndexMapping assigns the indexes 0..N-1 to a set of block keys in sorted
// key order. A mapping is immutable once constructed and may be shared between
// stores and goroutines.
type IndexMapping struct {
	keys  []BlockKey
	index swiss.Map[BlockKey, int]
}

// NewIndexMapping constructs a mapping over keys. Duplicate keys are collapsed.
// Constructing a mapping twice over the same set of keys, in any order, yields
// identical indexes.
func NewIndexMapping(keys []BlockKey) *IndexMapping {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, base.CompareBlockKeys)
	sorted = slices.Compact(sorted)
	m := &IndexMapping{keys: sorted}
	m.index.Init(len(sorted))
	for i, k := range sorted {
		m.index.Put(k, i)
	}
	return m
}

// IndexFor returns the index assigned to k, or an error marked
// base.ErrUnknownBlock.
func (m *IndexMapping) IndexFor(k BlockKey) (int, error) {
	if i, ok := m.index.Get(k); ok {
		return i, nil
	}
	return 0, errors.Mark(errors.Newf("blockcache: no index for block %s", k), base.ErrUnknownBlock)
}

// Contains returns true if k has an index.
func (m *IndexMapping) Contains(k BlockKey) bool {
	_, ok := m.index.Get(k)
	return ok
}

// Keys returns the mapped keys in index order. The returned slice must not be
// modified.
func (m *IndexMapping) Keys() []BlockKey {
	return m.keys
}

// Len returns the number of mapped keys.
func (m *IndexMapping) Len() int {
	return len(m.keys)
}
