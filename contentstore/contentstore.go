// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package contentstore defines the content store the pipeline builds block
// structures from, and an in-memory implementation loadable from YAML course
// fixtures.
package contentstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
)

// Node is a single block as stored in the content store.
type Node struct {
	Key      base.BlockKey
	Children []base.BlockKey
	// Fields holds the raw field values of the block. An absent field is
	// unset.
	Fields map[string]any
}

// Field returns the value of the named field.
func (n *Node) Field(name string) (any, bool) {
	v, ok := n.Fields[name]
	return v, ok
}

// Subtree is every node reachable from Root, keyed by block key. A node with
// several parents appears once.
type Subtree struct {
	Root  base.BlockKey
	Nodes map[base.BlockKey]*Node
}

// Store is the content store collaborator.
type Store interface {
	// GetNode returns the node for key. A missing node returns false and no
	// error.
	GetNode(ctx context.Context, key base.BlockKey) (*Node, bool, error)
	// GetSubtree returns the nodes reachable from root. A missing root
	// returns false and no error. A child that cannot be found returns an
	// error marked base.ErrItemNotFound.
	GetSubtree(ctx context.Context, root base.BlockKey) (*Subtree, bool, error)
}

// Mem is an in-memory Store. It is safe for concurrent use.
type Mem struct {
	mu    sync.RWMutex
	nodes map[base.BlockKey]*Node
}

var _ Store = (*Mem)(nil)

// NewMem returns a store holding nodes.
func NewMem(nodes ...*Node) *Mem {
	m := &Mem{nodes: make(map[base.BlockKey]*Node, len(nodes))}
	for _, n := range nodes {
		m.Put(n)
	}
	return m
}

// Put adds or replaces a node.
func (m *Mem) Put(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.Key] = n
}

// Delete removes the node for key.
func (m *Mem) Delete(key base.BlockKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, key)
}

// Keys returns the keys of every stored node, sorted.
func (m *Mem) Keys() []base.BlockKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.SortedFunc(maps.Keys(m.nodes), base.CompareBlockKeys)
}

// Roots returns the keys of stored nodes of type "course", sorted.
func (m *Mem) Roots() []base.BlockKey {
	var roots []base.BlockKey
	for _, k := range m.Keys() {
		if k.Type == "course" {
			roots = append(roots, k)
		}
	}
	return roots
}

// GetNode implements Store.
func (m *Mem) GetNode(ctx context.Context, key base.BlockKey) (*Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[key]
	return n, ok, nil
}

// GetSubtree implements Store.
func (m *Mem) GetSubtree(ctx context.Context, root base.BlockKey) (*Subtree, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rn, ok := m.nodes[root]
	if !ok {
		return nil, false, nil
	}
	st := &Subtree{Root: root, Nodes: map[base.BlockKey]*Node{root: rn}}
	stack := []*Node{rn}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range n.Children {
			if _, ok := st.Nodes[c]; ok {
				continue
			}
			cn, ok := m.nodes[c]
			if !ok {
				return nil, false, errors.Mark(
					errors.Newf("blockcache: %s references missing child %s", n.Key, c),
					base.ErrItemNotFound)
			}
			st.Nodes[c] = cn
			stack = append(stack, cn)
		}
	}
	return st, true, nil
}
