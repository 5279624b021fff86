// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"context"
	"slices"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/blobfmt"
	"github.com/cockroachdb/blockcache/internal/compression"
	"github.com/cockroachdb/blockcache/structure"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
)

// CacheKeyPrefix prefixes every backend key written by a Manager.
const CacheKeyPrefix = "blockcache.root."

// CacheKey returns the backend key the structure rooted at root is cached
// under.
func CacheKey(root BlockKey) string {
	return CacheKeyPrefix + root.String()
}

// EncodeBlocks serializes b into a cache blob. Only the structure and the
// collected transformer data are stored.
func EncodeBlocks(b *Blocks, setting compression.Setting) ([]byte, error) {
	keys := b.Structure.BlockKeys()
	index := func(k BlockKey) int {
		i, _ := slices.BinarySearchFunc(keys, k, base.CompareBlockKeys)
		return i
	}
	indexes := func(ks []BlockKey) []int {
		out := make([]int, len(ks))
		for i, k := range ks {
			out[i] = index(k)
		}
		return out
	}

	blob := &blobfmt.Blob{
		Keys:     keys,
		Root:     index(b.Root()),
		Children: make([][]int, len(keys)),
		Parents:  make([][]int, len(keys)),
	}
	for i, k := range keys {
		blob.Children[i] = indexes(b.Structure.Children(k))
		blob.Parents[i] = indexes(b.Structure.Parents(k))
	}

	for _, name := range b.TransformerNames() {
		d := b.transformers[name]
		data, err := blobfmt.EncodeValue(d.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "transformer %s", errors.Safe(name))
		}
		t := blobfmt.Transformer{Name: name, Version: d.Version, Data: data}
		for _, f := range d.Fields.Fields() {
			col := make([]any, len(keys))
			for i, k := range keys {
				if col[i], err = d.Fields.Get(f, k); err != nil {
					return nil, errors.Wrapf(err, "transformer %s", errors.Safe(name))
				}
			}
			enc, err := blobfmt.EncodeColumn(col)
			if err != nil {
				return nil, errors.Wrapf(err, "transformer %s field %s", errors.Safe(name), errors.Safe(f))
			}
			t.Fields = append(t.Fields, blobfmt.Column{Name: f, Values: enc})
		}
		blob.Transformers = append(blob.Transformers, t)
	}
	return blobfmt.Encode(blob, setting)
}

// DecodeBlocks reconstructs Blocks from a blob produced by EncodeBlocks. Any
// failure is marked ErrCorruption.
func DecodeBlocks(data []byte) (*Blocks, error) {
	blob, err := blobfmt.Decode(data)
	if err != nil {
		return nil, err
	}
	relations := make(map[BlockKey]structure.Relations, len(blob.Keys))
	keysOf := func(idx []int) []BlockKey {
		out := make([]BlockKey, len(idx))
		for i, j := range idx {
			out[i] = blob.Keys[j]
		}
		return out
	}
	for i, k := range blob.Keys {
		relations[k] = structure.Relations{
			Parents:  keysOf(blob.Parents[i]),
			Children: keysOf(blob.Children[i]),
		}
	}
	root := blob.Keys[blob.Root]
	s, err := structure.FromRelations(root, relations)
	if err != nil {
		return nil, base.MarkCorruptionError(err)
	}

	b := newBlocks(root.Course, s)
	mapping := fields.NewIndexMapping(blob.Keys)
	for _, t := range blob.Transformers {
		if _, ok := b.transformers[t.Name]; ok {
			return nil, base.CorruptionErrorf("blockcache: transformer %q appears twice", errors.Safe(t.Name))
		}
		data, err := blobfmt.DecodeValue(t.Data)
		if err != nil {
			return nil, err
		}
		columns := make(map[string][]any, len(t.Fields))
		for _, c := range t.Fields {
			if columns[c.Name], err = blobfmt.DecodeColumn(c.Values, len(blob.Keys)); err != nil {
				return nil, err
			}
		}
		v, err := fields.FromColumns(mapping, columns)
		if err != nil {
			return nil, base.MarkCorruptionError(err)
		}
		b.transformers[t.Name] = &TransformerData{Version: t.Version, Data: data, Fields: v}
	}
	return b, nil
}

// serializeToCache writes b to the cache backend.
func (m *Manager) serializeToCache(ctx context.Context, b *Blocks) error {
	data, err := EncodeBlocks(b, *m.opts.Compression)
	if err != nil {
		return errors.Wrapf(err, "blockcache: encoding %s", b.Root())
	}
	if err := m.opts.Cache.Set(ctx, CacheKey(b.Root()), data, m.opts.CacheTTL); err != nil {
		return errors.Wrapf(err, "blockcache: caching %s", b.Root())
	}
	m.metrics.recordWrite(len(data))
	if h := m.opts.BlobSizeBytes; h != nil {
		h.Observe(float64(len(data)))
	}
	m.opts.Logger.Infof("blockcache: cached %s: %d blocks, %s",
		b.Root(), b.Len(), crhumanize.Bytes(int64(len(data)), crhumanize.Compact, crhumanize.OmitI))
	return nil
}

// createFromCache returns the cached Blocks for root. A missing, corrupt or
// stale entry is reported as a miss. Only backend failures are returned as
// errors.
func (m *Manager) createFromCache(ctx context.Context, root BlockKey) (*Blocks, bool, error) {
	data, ok, err := m.opts.Cache.Get(ctx, CacheKey(root))
	if err != nil {
		return nil, false, errors.Wrapf(err, "blockcache: reading cached %s", root)
	}
	if !ok {
		m.metrics.recordMiss()
		return nil, false, nil
	}
	b, err := DecodeBlocks(data)
	if err == nil && b.Root() != root {
		err = base.CorruptionErrorf("blockcache: entry for %s is rooted at %s", root, b.Root())
	}
	if err != nil {
		m.metrics.recordCorrupt()
		m.opts.Logger.Infof("blockcache: discarding cached %s: %v", root, err)
		return nil, false, nil
	}
	for _, t := range m.opts.Registry.Registered() {
		d, ok := b.transformers[t.Name()]
		if !ok {
			m.metrics.recordStale()
			m.opts.Logger.Infof("blockcache: discarding cached %s: no data for transformer %s",
				root, t.Name())
			return nil, false, nil
		}
		if d.Version != t.Version() {
			m.metrics.recordStale()
			m.opts.Logger.Infof("blockcache: discarding cached %s: transformer %s collected at version %d, want %d",
				root, t.Name(), d.Version, t.Version())
			return nil, false, nil
		}
	}
	m.metrics.recordHit()
	return b, true, nil
}

// removeFromCache deletes the cached entry for root.
func (m *Manager) removeFromCache(ctx context.Context, root BlockKey) error {
	if err := m.opts.Cache.Delete(ctx, CacheKey(root)); err != nil {
		return errors.Wrapf(err, "blockcache: clearing %s", root)
	}
	return nil
}
