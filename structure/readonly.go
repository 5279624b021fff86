// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package structure

import (
	"iter"

	"github.com/cockroachdb/blockcache/internal/base"
)

// ReadOnly returns a write-protected view of r. The static type only exposes
// Reader. The dynamic type also satisfies Mutable so that a transformer which
// asserts its way around the restriction fails loudly: every mutating method
// panics with an error marked base.ErrWriteNotAllowed.
func ReadOnly(r Reader) Reader {
	if v, ok := r.(readOnlyView); ok {
		return v
	}
	return readOnlyView{r: r}
}

type readOnlyView struct {
	r Reader
}

var _ Mutable = readOnlyView{}

func (v readOnlyView) Root() BlockKey                 { return v.r.Root() }
func (v readOnlyView) HasBlock(k BlockKey) bool       { return v.r.HasBlock(k) }
func (v readOnlyView) Parents(k BlockKey) []BlockKey  { return v.r.Parents(k) }
func (v readOnlyView) Children(k BlockKey) []BlockKey { return v.r.Children(k) }
func (v readOnlyView) Len() int                       { return v.r.Len() }
func (v readOnlyView) BlockKeys() []BlockKey          { return v.r.BlockKeys() }
func (v readOnlyView) PostOrder() iter.Seq[BlockKey]  { return v.r.PostOrder() }
func (v readOnlyView) Topological(pred func(BlockKey) bool) iter.Seq[BlockKey] {
	return v.r.Topological(pred)
}

func (readOnlyView) AddRelation(parent, child BlockKey) {
	panic(base.WriteNotAllowedf("AddRelation"))
}

func (readOnlyView) RemoveBlock(k BlockKey, keepDescendants bool) {
	panic(base.WriteNotAllowedf("RemoveBlock"))
}

func (readOnlyView) RemoveBlockIf(cond func(BlockKey) bool, keepDescendants bool) int {
	panic(base.WriteNotAllowedf("RemoveBlockIf"))
}

func (readOnlyView) Prune() int {
	panic(base.WriteNotAllowedf("Prune"))
}
