// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package traverse implements topological and post-order traversals over a
// directed acyclic graph described by parent and child accessor functions.
//
// All traversals are lazy and restartable: each call returns a fresh
// iter.Seq, and ranging over the same sequence twice walks the graph twice.
// A node reachable along several paths (a diamond) is produced exactly once.
// Traversals terminate on cyclic input, but the nodes on a cycle (and their
// descendants, for Topological) are not produced; use CheckAcyclic to detect
// that case.
package traverse

import (
	"iter"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
)

// Topological returns an iterator over the nodes reachable from start. Every
// node is produced after all of its parents that are themselves reachable from
// start. Siblings are produced in the order returned by children, and each
// subtree is explored depth-first, so a tree is produced in pre-order.
//
// If pred is non-nil, nodes for which it returns false are not produced, but
// their descendants are still visited. pred controls what is yielded; it never
// prunes the walk.
func Topological[K comparable](
	start K, parents, children func(K) []K, pred func(K) bool,
) iter.Seq[K] {
	return func(yield func(K) bool) {
		reachable := reachableFrom(start, children)
		visited := make(map[K]struct{}, len(reachable))
		stack := []K{start}
		for len(stack) > 0 {
			n := len(stack) - 1
			cur := stack[n]
			stack = stack[:n]
			if _, ok := visited[cur]; ok {
				continue
			}
			if cur != start && !parentsVisited(cur, parents, reachable, visited) {
				// Pushed again once its last remaining parent is visited.
				continue
			}
			visited[cur] = struct{}{}
			kids := children(cur)
			for i := len(kids) - 1; i >= 0; i-- {
				if _, ok := visited[kids[i]]; !ok {
					stack = append(stack, kids[i])
				}
			}
			if pred != nil && !pred(cur) {
				continue
			}
			if !yield(cur) {
				return
			}
		}
	}
}

func parentsVisited[K comparable](
	k K, parents func(K) []K, reachable map[K]struct{}, visited map[K]struct{},
) bool {
	for _, p := range parents(k) {
		if _, ok := reachable[p]; !ok {
			continue
		}
		if _, ok := visited[p]; !ok {
			return false
		}
	}
	return true
}

func reachableFrom[K comparable](start K, children func(K) []K) map[K]struct{} {
	seen := map[K]struct{}{start: {}}
	stack := []K{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		for _, c := range children(cur) {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				stack = append(stack, c)
			}
		}
	}
	return seen
}

type frame[K comparable] struct {
	node K
	kids []K
	next int
}

// PostOrder returns an iterator over the nodes reachable from start in which
// every node is produced strictly after all of its descendants.
func PostOrder[K comparable](start K, children func(K) []K) iter.Seq[K] {
	return func(yield func(K) bool) {
		seen := map[K]struct{}{start: {}}
		stack := []frame[K]{{node: start, kids: children(start)}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.kids) {
				c := top.kids[top.next]
				top.next++
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				// NB: top is invalidated by the append.
				stack = append(stack, frame[K]{node: c, kids: children(c)})
				continue
			}
			node := top.node
			stack = stack[:len(stack)-1]
			if !yield(node) {
				return
			}
		}
	}
}

// CheckAcyclic returns an error marked base.ErrGraphCycle if a cycle is
// reachable from start.
func CheckAcyclic[K comparable](start K, children func(K) []K) error {
	const (
		onStack = 1
		done    = 2
	)
	state := map[K]int{start: onStack}
	stack := []frame[K]{{node: start, kids: children(start)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.kids) {
			c := top.kids[top.next]
			top.next++
			switch state[c] {
			case onStack:
				return errors.Mark(
					errors.Newf("blockcache: cycle through %v -> %v", top.node, c), base.ErrGraphCycle)
			case done:
				continue
			}
			state[c] = onStack
			stack = append(stack, frame[K]{node: c, kids: children(c)})
			continue
		}
		state[top.node] = done
		stack = stack[:len(stack)-1]
	}
	return nil
}

// Map returns an iterator producing fn applied to every element of seq.
func Map[K, R any](seq iter.Seq[K], fn func(K) R) iter.Seq[R] {
	return func(yield func(R) bool) {
		for k := range seq {
			if !yield(fn(k)) {
				return
			}
		}
	}
}
