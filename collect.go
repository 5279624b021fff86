// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"context"
	"time"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/structure"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// collect runs Collect for every registered transformer and returns the
// resulting Blocks. Transformers run concurrently, bounded by
// Options.CollectConcurrency; each sees write-protected views of s and raw
// and writes only to its own field store.
func (m *Manager) collect(
	ctx context.Context, courseKey string, s *structure.BlockStructure, raw *fields.Values,
) (*Blocks, error) {
	ts := m.opts.Registry.Registered()
	results := make([]*TransformerData, len(ts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.CollectConcurrency)
	for i, t := range ts {
		g.Go(func() error {
			d, err := m.collectOne(ctx, t, courseKey, s, raw)
			if err != nil {
				return errors.Wrapf(err, "blockcache: collecting %s", errors.Safe(t.Name()))
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := newBlocks(courseKey, s)
	for i, t := range ts {
		b.transformers[t.Name()] = results[i]
	}
	return b, nil
}

// collectOne runs a single transformer. A transformer that tries to mutate
// the write-protected views panics with an error marked ErrWriteNotAllowed,
// which is returned as an error. Any other panic is propagated.
func (m *Manager) collectOne(
	ctx context.Context,
	t transformer.Transformer,
	courseKey string,
	s *structure.BlockStructure,
	raw *fields.Values,
) (_ *TransformerData, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok || !errors.Is(e, ErrWriteNotAllowed) {
				panic(r)
			}
			err = e
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	cd := transformer.NewCollectData(courseKey, s, raw, raw.Mapping())
	if err := t.Collect(ctx, cd); err != nil {
		return nil, err
	}
	if h := m.opts.CollectLatency; h != nil {
		h.Observe(time.Since(start).Seconds())
	}
	return &TransformerData{Version: t.Version(), Data: cd.Data(), Fields: cd.Fields}, nil
}
