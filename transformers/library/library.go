// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package library implements the content library transformer. A
// library_content block shows each user a selection of at most max_count of
// its children.
package library

import (
	"cmp"
	"context"
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Name is the registered name of the transformer.
	Name = "library_content"
	// Version of the collected data.
	Version = 1

	// BlockType is the type of content library blocks.
	BlockType = "library_content"
	// MaxCountField is the number of children shown to each user. Zero or
	// unset shows every child.
	MaxCountField = "max_count"

	// ContentField is the collected per-block annotation holding a *Content.
	ContentField = "library_content"
)

const contentExtID int8 = 4

func init() {
	msgpack.RegisterExt(contentExtID, (*Content)(nil))
}

// Content describes the children of a library_content block.
type Content struct {
	Children []base.BlockKey `msgpack:"children"`
	MaxCount int             `msgpack:"max_count"`
}

type content Content

// MarshalMsgpack implements msgpack.Marshaler.
func (c *Content) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal((*content)(c))
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (c *Content) UnmarshalMsgpack(b []byte) error {
	return msgpack.Unmarshal(b, (*content)(c))
}

// SelectionSource chooses the library children shown to a user.
type SelectionSource interface {
	// Select returns the selected subset of children. At most maxCount
	// children may be selected unless maxCount is zero.
	Select(
		ctx context.Context, user transformer.UserInfo, block base.BlockKey,
		children []base.BlockKey, maxCount int,
	) ([]base.BlockKey, error)
}

// FirstN selects the first max_count children in course order.
type FirstN struct{}

var _ SelectionSource = FirstN{}

// Select implements SelectionSource.
func (FirstN) Select(
	_ context.Context, _ transformer.UserInfo, _ base.BlockKey, children []base.BlockKey, maxCount int,
) ([]base.BlockKey, error) {
	if maxCount <= 0 || maxCount >= len(children) {
		return children, nil
	}
	return children[:maxCount], nil
}

// Hashed selects max_count children pseudo-randomly, but stably for a given
// user and block, by ranking children on a hash of the user, block and
// child.
type Hashed struct {
	Seed uint64
}

var _ SelectionSource = Hashed{}

// Select implements SelectionSource.
func (h Hashed) Select(
	_ context.Context, user transformer.UserInfo, block base.BlockKey, children []base.BlockKey, maxCount int,
) ([]base.BlockKey, error) {
	if maxCount <= 0 || maxCount >= len(children) {
		return children, nil
	}
	type ranked struct {
		key  base.BlockKey
		rank uint64
	}
	rs := make([]ranked, len(children))
	for i, c := range children {
		d := xxhash.New()
		var seed [8]byte
		binary.LittleEndian.PutUint64(seed[:], h.Seed)
		_, _ = d.Write(seed[:])
		_, _ = d.WriteString(user.UserID())
		_, _ = d.WriteString(block.String())
		_, _ = d.WriteString(c.String())
		rs[i] = ranked{key: c, rank: d.Sum64()}
	}
	slices.SortFunc(rs, func(a, b ranked) int {
		if c := cmp.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		return a.key.Compare(b.key)
	})
	selected := make(map[base.BlockKey]bool, maxCount)
	for _, r := range rs[:maxCount] {
		selected[r.key] = true
	}
	// Preserve course order.
	out := make([]base.BlockKey, 0, maxCount)
	for _, c := range children {
		if selected[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Transformer is the content library transformer.
type Transformer struct {
	Selection SelectionSource
}

var _ transformer.Transformer = (*Transformer)(nil)

// New returns a transformer choosing children through s.
func New(s SelectionSource) *Transformer {
	return &Transformer{Selection: s}
}

// Name implements transformer.Transformer.
func (*Transformer) Name() string { return Name }

// Version implements transformer.Transformer.
func (*Transformer) Version() int { return Version }

// RequiredFields implements transformer.Transformer.
func (*Transformer) RequiredFields() []string { return []string{MaxCountField} }

// Collect implements transformer.Transformer.
func (t *Transformer) Collect(ctx context.Context, cd *transformer.CollectData) error {
	cd.Fields.Declare(ContentField)
	isLibrary := func(k base.BlockKey) bool { return k.Type == BlockType }
	for k := range cd.Structure.Topological(isLibrary) {
		maxCount, _, err := fields.As[int](cd.XBlockFields, MaxCountField, k)
		if err != nil {
			return err
		}
		c := &Content{
			Children: slices.Clone(cd.Structure.Children(k)),
			MaxCount: maxCount,
		}
		if err := cd.Fields.Set(ContentField, k, c); err != nil {
			return err
		}
	}
	return nil
}

// Transform implements transformer.Transformer. Children of library blocks
// that were not selected for the user are removed. Staff see every child.
func (t *Transformer) Transform(
	ctx context.Context, user transformer.UserInfo, td *transformer.TransformData,
) error {
	if user.HasStaffAccess() {
		return nil
	}
	if t.Selection == nil {
		return errors.AssertionFailedf("%s transformer has no selection source", Name)
	}

	removed := make(map[base.BlockKey]bool)
	for _, k := range td.Structure.BlockKeys() {
		if k.Type != BlockType {
			continue
		}
		v, err := td.Fields.Get(ContentField, k)
		if err != nil {
			return err
		}
		c, _ := v.(*Content)
		if c == nil {
			continue
		}
		children := slices.DeleteFunc(slices.Clone(c.Children), func(child base.BlockKey) bool {
			return !td.Structure.HasBlock(child)
		})
		selected, err := t.Selection.Select(ctx, user, k, children, c.MaxCount)
		if err != nil {
			return errors.Wrapf(err, "selecting children of %s", k)
		}
		for _, child := range children {
			if !slices.Contains(selected, child) {
				removed[child] = true
			}
		}
	}
	if len(removed) == 0 {
		return nil
	}
	td.Structure.RemoveBlockIf(func(k base.BlockKey) bool { return removed[k] }, td.KeepDescendants())
	return nil
}
