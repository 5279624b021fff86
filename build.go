// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"context"

	"github.com/cockroachdb/blockcache/contentstore"
	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/structure"
	"github.com/cockroachdb/errors"
)

// build fetches the subtree rooted at root from the content store and returns
// its structure along with the raw values of fieldNames for every block.
//
// A block reachable along several paths is visited once. Nothing is returned
// unless the whole subtree could be read.
func build(
	ctx context.Context, store contentstore.Store, root BlockKey, fieldNames []string,
) (*structure.BlockStructure, *fields.Values, error) {
	sub, ok, err := store.GetSubtree(ctx, root)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "blockcache: fetching %s", root)
	}
	if !ok {
		return nil, nil, errors.Mark(errors.Newf("blockcache: %s not found", root), ErrNotFound)
	}

	s := structure.New(root)
	nodes := make([]*contentstore.Node, 0, len(sub.Nodes))
	visited := map[BlockKey]struct{}{root: {}}
	stack := []BlockKey{root}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := sub.Nodes[k]
		if !ok {
			return nil, nil, errors.Mark(
				errors.Newf("blockcache: %s missing from the subtree of %s", k, root), base.ErrItemNotFound)
		}
		nodes = append(nodes, n)
		for _, c := range n.Children {
			s.AddRelation(k, c)
			if _, ok := visited[c]; !ok {
				visited[c] = struct{}{}
				stack = append(stack, c)
			}
		}
	}
	if err := s.Validate(); err != nil {
		return nil, nil, errors.Wrapf(err, "blockcache: building %s", root)
	}

	raw := fields.NewBlank(fields.NewIndexMapping(s.BlockKeys()), fieldNames...)
	for _, n := range nodes {
		for _, f := range fieldNames {
			v, ok := n.Field(f)
			if !ok {
				continue
			}
			if err := raw.Set(f, n.Key, v); err != nil {
				return nil, nil, err
			}
		}
	}
	return s, raw, nil
}
