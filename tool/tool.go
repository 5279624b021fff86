// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tool implements the blockcache introspection commands.
package tool

import (
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/spf13/cobra"
)

// T is the container for all of the introspection tools.
type T struct {
	Commands []*cobra.Command
	blocks   *blocksT
	cache    *cacheT
	bench    *benchT
	cfg      Config
	extra    []transformer.Transformer
}

// Option configures a T.
type Option func(*T)

// WithConfig sets the configuration used when no --config flag is given.
func WithConfig(cfg Config) Option {
	return func(t *T) { t.cfg = cfg }
}

// WithTransformers registers additional transformers with every manager the
// tools create.
func WithTransformers(ts ...transformer.Transformer) Option {
	return func(t *T) { t.extra = append(t.extra, ts...) }
}

// New creates a new introspection tool.
func New(opts ...Option) *T {
	t := &T{cfg: DefaultConfig()}
	for _, o := range opts {
		o(t)
	}

	t.blocks = newBlocks(t)
	t.cache = newCache(t)
	t.bench = newBench(t)
	t.Commands = []*cobra.Command{
		t.blocks.Root,
		t.cache.Root,
		t.bench.Root,
	}
	return t
}
