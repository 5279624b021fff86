// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blockcache provides cached, per-user views of course block
// structures.
//
// A course is a directed acyclic graph of blocks held by a content store. On
// a cache miss, the graph is read from the store and every registered
// transformer collects the annotations it needs. The structure and the
// collected annotations are then cached. Every request starts from the cached
// (or freshly collected) blocks and runs the transformers it names, in order,
// to filter the structure for a user. Blocks left unreachable are pruned.
package blockcache

import (
	"context"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/errors"
)

// Manager runs the block pipeline. It is safe for concurrent use. Concurrent
// requests that miss the cache for the same root all rebuild it, and the last
// write wins.
type Manager struct {
	opts    Options
	metrics metrics
}

// New returns a Manager configured by opts. The options are copied.
func New(opts *Options) (*Manager, error) {
	m := &Manager{opts: *opts}
	m.opts.EnsureDefaults()
	if err := m.opts.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Metrics returns a snapshot of the manager's counters.
func (m *Manager) Metrics() *Metrics {
	return m.metrics.snapshot()
}

// Registry returns the transformer registry.
func (m *Manager) Registry() *transformer.Registry {
	return m.opts.Registry
}

// GetBlocks returns the blocks under root visible to user after running the
// requested transformers in order. An empty request returns the collected
// blocks unfiltered.
//
// Naming an unregistered transformer fails with ErrUnregisteredTransformer
// before the cache or the content store is consulted.
func (m *Manager) GetBlocks(
	ctx context.Context, user UserInfo, root BlockKey, requested []string,
) (*Blocks, error) {
	ts, err := m.opts.Registry.Resolve(requested)
	if err != nil {
		return nil, err
	}
	b, err := m.load(ctx, root)
	if err != nil {
		return nil, err
	}
	if err := m.transform(ctx, user, b, ts); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBlocksWithRaw is like GetBlocks, but also returns the blocks as they were
// before any transformer ran.
func (m *Manager) GetBlocksWithRaw(
	ctx context.Context, user UserInfo, root BlockKey, requested []string,
) (transformed, raw *Blocks, _ error) {
	ts, err := m.opts.Registry.Resolve(requested)
	if err != nil {
		return nil, nil, err
	}
	b, err := m.load(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	raw = b.Clone()
	if err := m.transform(ctx, user, b, ts); err != nil {
		return nil, nil, err
	}
	return b, raw, nil
}

// ClearBlockCache removes the cached entry for root, typically because the
// course was republished.
func (m *Manager) ClearBlockCache(ctx context.Context, root BlockKey) error {
	return m.removeFromCache(ctx, root)
}

// load returns the collected blocks for root, from the cache if possible.
// Otherwise they are built, collected and cached.
func (m *Manager) load(ctx context.Context, root BlockKey) (*Blocks, error) {
	b, ok, err := m.createFromCache(ctx, root)
	if err != nil || ok {
		return b, err
	}

	s, raw, err := build(ctx, m.opts.Store, root, m.opts.Registry.RequiredFields())
	if err != nil {
		return nil, err
	}
	m.metrics.recordBuild()
	if b, err = m.collect(ctx, root.Course, s, raw); err != nil {
		return nil, err
	}
	if err := m.serializeToCache(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// transform runs ts in order against b and prunes the result.
func (m *Manager) transform(
	ctx context.Context, user UserInfo, b *Blocks, ts []transformer.Transformer,
) error {
	for _, t := range ts {
		d, ok := b.transformers[t.Name()]
		if !ok {
			return errors.AssertionFailedf("no data collected by transformer %s", errors.Safe(t.Name()))
		}
		td := &transformer.TransformData{
			CourseKey:     b.CourseKey,
			Structure:     b.Structure,
			Fields:        fields.ReadOnly(d.Fields),
			Data:          d.Data,
			RemoveOrphans: !m.opts.KeepOrphans,
		}
		if err := t.Transform(ctx, user, td); err != nil {
			return errors.Wrapf(err, "blockcache: transformer %s", errors.Safe(t.Name()))
		}
	}
	_, err := b.Prune()
	return err
}
