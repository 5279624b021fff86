// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"maps"
	"slices"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/structure"
	"github.com/cockroachdb/errors"
)

// TransformerData is the collected output of a single transformer.
type TransformerData struct {
	// Version is the transformer version the data was collected at.
	Version int
	// Data is the transformer-wide value recorded by
	// transformer.CollectData.SetData.
	Data any
	// Fields holds the per-block annotations.
	Fields *fields.Values
}

func (d *TransformerData) clone() *TransformerData {
	return &TransformerData{Version: d.Version, Data: d.Data, Fields: d.Fields.Clone()}
}

// Blocks is a block structure together with the data every registered
// transformer collected for it.
type Blocks struct {
	CourseKey string
	Structure *structure.BlockStructure

	transformers map[string]*TransformerData
}

func newBlocks(courseKey string, s *structure.BlockStructure) *Blocks {
	return &Blocks{
		CourseKey:    courseKey,
		Structure:    s,
		transformers: make(map[string]*TransformerData),
	}
}

// Root returns the root block key.
func (b *Blocks) Root() BlockKey { return b.Structure.Root() }

// Len returns the number of blocks.
func (b *Blocks) Len() int { return b.Structure.Len() }

// TransformerNames returns the names of the transformers that collected data,
// sorted.
func (b *Blocks) TransformerNames() []string {
	return slices.Sorted(maps.Keys(b.transformers))
}

// TransformerData returns the data collected by the named transformer.
func (b *Blocks) TransformerData(name string) (*TransformerData, bool) {
	d, ok := b.transformers[name]
	return d, ok
}

// Get returns the value of a field collected by the named transformer.
func (b *Blocks) Get(transformerName, field string, k BlockKey) (any, error) {
	d, ok := b.transformers[transformerName]
	if !ok {
		return nil, errors.Mark(
			errors.Newf("blockcache: no data collected by transformer %q", errors.Safe(transformerName)),
			ErrUnregisteredTransformer)
	}
	return d.Fields.Get(field, k)
}

// Clone returns a deep copy of b. Transformer-wide data values are shared.
func (b *Blocks) Clone() *Blocks {
	c := newBlocks(b.CourseKey, b.Structure.Clone())
	for name, d := range b.transformers {
		c.transformers[name] = d.clone()
	}
	return c
}

// Prune drops blocks no longer reachable from the root, along with their
// field values. It returns the number of blocks dropped.
func (b *Blocks) Prune() (int, error) {
	n := b.Structure.Prune()
	if n == 0 {
		return 0, nil
	}
	keys := b.Structure.BlockKeys()
	for name, d := range b.transformers {
		v, err := d.Fields.SliceByKeys(keys)
		if err != nil {
			return n, errors.Wrapf(err, "pruning fields of transformer %s", errors.Safe(name))
		}
		d.Fields = v
	}
	return n, nil
}

// Subset returns the blocks reachable from newRoot, with copies of their
// field values. Transformer-wide data is preserved.
func (b *Blocks) Subset(newRoot BlockKey) (*Blocks, error) {
	s, err := b.Structure.Subset(newRoot)
	if err != nil {
		return nil, err
	}
	keys := s.BlockKeys()
	sub := newBlocks(b.CourseKey, s)
	for name, d := range b.transformers {
		v, err := d.Fields.SliceByKeys(keys)
		if err != nil {
			return nil, errors.Wrapf(err, "subsetting fields of transformer %s", errors.Safe(name))
		}
		sub.transformers[name] = &TransformerData{Version: d.Version, Data: d.Data, Fields: v}
	}
	return sub, nil
}
