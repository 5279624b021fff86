// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package structure implements the block structure: a directed acyclic graph of
// course blocks rooted at a single block, with symmetric parent and child
// adjacency.
//
// Two capabilities are exposed. Reader answers structural queries and walks the
// graph. Mutable adds the operations that change topology. The collect phase
// of a transformer only ever receives a Reader, and the Reader it receives is a
// view whose dynamic type panics with an error marked base.ErrWriteNotAllowed
// if it is asserted back to Mutable and written through.
package structure

import (
	"iter"
	"slices"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/invariants"
	"github.com/cockroachdb/blockcache/internal/traverse"
	"github.com/cockroachdb/errors"
)

// BlockKey exports the base.BlockKey type.
type BlockKey = base.BlockKey

// Reader is the read-only capability over a block structure.
type Reader interface {
	// Root returns the key the structure is rooted at. The root is always
	// present in a newly constructed structure.
	Root() BlockKey
	// HasBlock returns true if the key has an adjacency entry.
	HasBlock(k BlockKey) bool
	// Parents returns the parents of k in insertion order. Unknown keys have no
	// parents. The returned slice must not be modified.
	Parents(k BlockKey) []BlockKey
	// Children returns the children of k in insertion order. Unknown keys have
	// no children. The returned slice must not be modified.
	Children(k BlockKey) []BlockKey
	// Len returns the number of blocks with an adjacency entry.
	Len() int
	// BlockKeys returns every key with an adjacency entry, sorted.
	BlockKeys() []BlockKey
	// Topological walks the blocks reachable from the root, producing each
	// block after all of its parents. See traverse.Topological.
	Topological(pred func(BlockKey) bool) iter.Seq[BlockKey]
	// PostOrder walks the blocks reachable from the root, producing each block
	// after all of its descendants.
	PostOrder() iter.Seq[BlockKey]
}

// Mutable is the capability to change the topology of a block structure.
type Mutable interface {
	Reader
	// AddRelation records the edge parent -> child, and its mirror. Adding an
	// edge that already exists is a no-op.
	AddRelation(parent, child BlockKey)
	// RemoveBlock detaches k from its parents and children and drops it. If
	// keepDescendants is set, every former parent of k is connected to every
	// former child of k. Removing an unknown key is a no-op.
	RemoveBlock(k BlockKey, keepDescendants bool)
	// RemoveBlockIf removes every reachable block for which cond returns true,
	// visiting blocks in topological order. It returns the number of blocks
	// removed.
	RemoveBlockIf(cond func(BlockKey) bool, keepDescendants bool) int
	// Prune drops every block that is no longer reachable from the root and
	// returns the number of blocks dropped.
	Prune() int
}

// Relations holds the adjacency of a single block.
type Relations struct {
	Parents  []BlockKey
	Children []BlockKey
}

// BlockStructure is the reference Mutable implementation. It is not safe for
// concurrent mutation; a structure belongs to a single pipeline run.
type BlockStructure struct {
	root      BlockKey
	relations map[BlockKey]*Relations
}

var _ Mutable = (*BlockStructure)(nil)

// New returns a structure containing only root.
func New(root BlockKey) *BlockStructure {
	s := &BlockStructure{
		root:      root,
		relations: make(map[BlockKey]*Relations),
	}
	s.addBlock(root)
	return s
}

func (s *BlockStructure) addBlock(k BlockKey) *Relations {
	rel, ok := s.relations[k]
	if !ok {
		rel = &Relations{}
		s.relations[k] = rel
	}
	return rel
}

// Root implements Reader.
func (s *BlockStructure) Root() BlockKey { return s.root }

// HasBlock implements Reader.
func (s *BlockStructure) HasBlock(k BlockKey) bool {
	_, ok := s.relations[k]
	return ok
}

// Parents implements Reader.
func (s *BlockStructure) Parents(k BlockKey) []BlockKey {
	if rel, ok := s.relations[k]; ok {
		return rel.Parents
	}
	return nil
}

// Children implements Reader.
func (s *BlockStructure) Children(k BlockKey) []BlockKey {
	if rel, ok := s.relations[k]; ok {
		return rel.Children
	}
	return nil
}

// Len implements Reader.
func (s *BlockStructure) Len() int { return len(s.relations) }

// BlockKeys implements Reader.
func (s *BlockStructure) BlockKeys() []BlockKey {
	keys := make([]BlockKey, 0, len(s.relations))
	for k := range s.relations {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, base.CompareBlockKeys)
	return keys
}

// Topological implements Reader.
func (s *BlockStructure) Topological(pred func(BlockKey) bool) iter.Seq[BlockKey] {
	if !s.HasBlock(s.root) {
		return func(func(BlockKey) bool) {}
	}
	return traverse.Topological(s.root, s.Parents, s.Children, pred)
}

// PostOrder implements Reader.
func (s *BlockStructure) PostOrder() iter.Seq[BlockKey] {
	if !s.HasBlock(s.root) {
		return func(func(BlockKey) bool) {}
	}
	return traverse.PostOrder(s.root, s.Children)
}

// AddRelation implements Mutable.
func (s *BlockStructure) AddRelation(parent, child BlockKey) {
	p := s.addBlock(parent)
	c := s.addBlock(child)
	if !slices.Contains(p.Children, child) {
		p.Children = append(p.Children, child)
	}
	if !slices.Contains(c.Parents, parent) {
		c.Parents = append(c.Parents, parent)
	}
}

// RemoveBlock implements Mutable.
func (s *BlockStructure) RemoveBlock(k BlockKey, keepDescendants bool) {
	rel, ok := s.relations[k]
	if !ok {
		return
	}
	for _, c := range rel.Children {
		if cr, ok := s.relations[c]; ok {
			cr.Parents = without(cr.Parents, k)
		}
	}
	for _, p := range rel.Parents {
		if pr, ok := s.relations[p]; ok {
			pr.Children = without(pr.Children, k)
		}
	}
	delete(s.relations, k)

	if keepDescendants {
		for _, p := range rel.Parents {
			for _, c := range rel.Children {
				s.AddRelation(p, c)
			}
		}
	}
	if invariants.Enabled {
		s.mustBeSymmetric()
	}
}

// without returns a new slice holding keys minus k. The input is left
// untouched so that slices handed out by Parents and Children stay stable.
func without(keys []BlockKey, k BlockKey) []BlockKey {
	i := slices.Index(keys, k)
	if i < 0 {
		return keys
	}
	out := make([]BlockKey, 0, len(keys)-1)
	out = append(out, keys[:i]...)
	return append(out, keys[i+1:]...)
}

// RemoveBlockIf implements Mutable. The topological order is materialized
// before the first removal, and blocks that have disappeared by the time they
// come up are skipped. Descendants of removed blocks are still offered to cond.
func (s *BlockStructure) RemoveBlockIf(cond func(BlockKey) bool, keepDescendants bool) int {
	order := slices.Collect(s.Topological(nil))
	removed := 0
	for _, k := range order {
		if !s.HasBlock(k) || !cond(k) {
			continue
		}
		s.RemoveBlock(k, keepDescendants)
		removed++
	}
	return removed
}

// Prune implements Mutable.
func (s *BlockStructure) Prune() int {
	before := len(s.relations)
	pruned := &BlockStructure{root: s.root, relations: make(map[BlockKey]*Relations, before)}
	for k := range s.PostOrder() {
		pruned.addBlock(k)
		for _, c := range s.Children(k) {
			if pruned.HasBlock(c) {
				pruned.AddRelation(k, c)
			}
		}
	}
	// Rebuild parent lists in the original order; post-order processing may
	// have appended them differently.
	for k, rel := range pruned.relations {
		parents := rel.Parents[:0:0]
		for _, p := range s.Parents(k) {
			if pruned.HasBlock(p) {
				parents = append(parents, p)
			}
		}
		rel.Parents = parents
	}
	s.relations = pruned.relations
	return before - len(s.relations)
}

// Relations returns a deep copy of the adjacency map.
func (s *BlockStructure) Relations() map[BlockKey]Relations {
	m := make(map[BlockKey]Relations, len(s.relations))
	for k, rel := range s.relations {
		m[k] = Relations{
			Parents:  slices.Clone(rel.Parents),
			Children: slices.Clone(rel.Children),
		}
	}
	return m
}

// FromRelations reconstructs a structure from an adjacency map such as the one
// returned by Relations. The map is validated for symmetry and acyclicity.
func FromRelations(root BlockKey, relations map[BlockKey]Relations) (*BlockStructure, error) {
	s := &BlockStructure{root: root, relations: make(map[BlockKey]*Relations, len(relations))}
	for k, rel := range relations {
		s.relations[k] = &Relations{
			Parents:  slices.Clone(rel.Parents),
			Children: slices.Clone(rel.Children),
		}
	}
	if _, ok := s.relations[root]; !ok {
		return nil, errors.Newf("blockcache: root %s has no adjacency entry", root)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Clone returns a deep copy of s.
func (s *BlockStructure) Clone() *BlockStructure {
	c := &BlockStructure{root: s.root, relations: make(map[BlockKey]*Relations, len(s.relations))}
	for k, rel := range s.relations {
		c.relations[k] = &Relations{
			Parents:  slices.Clone(rel.Parents),
			Children: slices.Clone(rel.Children),
		}
	}
	return c
}

// Subset returns a new structure rooted at newRoot that holds the relations
// reachable from it. Parents outside the subset are dropped.
func (s *BlockStructure) Subset(newRoot BlockKey) (*BlockStructure, error) {
	if !s.HasBlock(newRoot) {
		return nil, errors.Mark(
			errors.Newf("blockcache: subset root %s is not in the structure", newRoot), base.ErrUnknownBlock)
	}
	sub := New(newRoot)
	for k := range traverse.Topological(newRoot, s.Parents, s.Children, nil) {
		for _, c := range s.Children(k) {
			sub.AddRelation(k, c)
		}
	}
	return sub, nil
}

// Validate checks that adjacency is symmetric and that no cycle is reachable
// from the root.
func (s *BlockStructure) Validate() error {
	if err := s.checkSymmetric(); err != nil {
		return err
	}
	if !s.HasBlock(s.root) {
		return nil
	}
	return traverse.CheckAcyclic(s.root, s.Children)
}

func (s *BlockStructure) checkSymmetric() error {
	for k, rel := range s.relations {
		for _, c := range rel.Children {
			if !slices.Contains(s.Parents(c), k) {
				return errors.Newf("blockcache: edge %s -> %s has no mirror", k, c)
			}
		}
		for _, p := range rel.Parents {
			if !slices.Contains(s.Children(p), k) {
				return errors.Newf("blockcache: edge %s -> %s has no mirror", p, k)
			}
		}
	}
	return nil
}

func (s *BlockStructure) mustBeSymmetric() {
	if err := s.checkSymmetric(); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "asymmetric block structure"))
	}
}
