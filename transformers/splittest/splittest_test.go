// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package splittest

import (
	"context"
	"testing"

	"github.com/cockroachdb/blockcache"
	"github.com/cockroachdb/blockcache/backend"
	"github.com/cockroachdb/blockcache/contentstore"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/blobfmt"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/blockcache/transformers/partitions"
	"github.com/stretchr/testify/require"
)

const course = "Org+Demo+2025"

var root = base.MakeBlockKey(course, "course", "course")

func key(typ, id string) base.BlockKey { return base.MakeBlockKey(course, typ, id) }

func newManager(t *testing.T, store contentstore.Store) *blockcache.Manager {
	groups := partitions.StaticGroups{
		"alice": {60: 0},
		"bob":   {60: 1},
	}
	reg, err := transformer.NewRegistry(New(groups))
	require.NoError(t, err)
	m, err := blockcache.New(&blockcache.Options{
		Registry: reg,
		Cache:    backend.NewMem(),
		Store:    store,
		Logger:   base.NoopLoggerForTesting{},
	})
	require.NoError(t, err)
	return m
}

func loadDemoCourse(t *testing.T) *contentstore.Mem {
	store, err := contentstore.LoadFile("../../contentstore/testdata/course.yaml")
	require.NoError(t, err)
	return store
}

func TestCollect(t *testing.T) {
	m := newManager(t, loadDemoCourse(t))
	_, raw, err := m.GetBlocksWithRaw(context.Background(), transformer.User{ID: "alice"}, root, nil)
	require.NoError(t, err)

	for _, tc := range []struct {
		block base.BlockKey
		want  *Assignment
	}{
		{key("vertical", "control"), &Assignment{PartitionID: 60, Groups: []int{0}}},
		{key("html", "control"), &Assignment{PartitionID: 60, Groups: []int{0}}},
		{key("vertical", "treatment"), &Assignment{PartitionID: 60, Groups: []int{1}}},
		{key("html", "treatment"), &Assignment{PartitionID: 60, Groups: []int{1}}},
		{key("split_test", "ab"), nil},
		{key("vertical", "shared"), nil},
	} {
		v, err := raw.Get(Name, AssignmentField, tc.block)
		require.NoError(t, err)
		if tc.want == nil {
			require.Nil(t, v, "%s", tc.block)
			continue
		}
		require.Equal(t, tc.want, v, "%s", tc.block)
	}
}

func TestTransform(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, loadDemoCourse(t))
	control, treatment := key("vertical", "control"), key("vertical", "treatment")
	for _, tc := range []struct {
		user                       transformer.User
		seesControl, seesTreatment bool
	}{
		{transformer.User{ID: "alice"}, true, false},
		{transformer.User{ID: "bob"}, false, true},
		{transformer.User{ID: "carol"}, false, false},
		{transformer.User{ID: "carol", Staff: true}, true, true},
	} {
		b, err := m.GetBlocks(ctx, tc.user, root, []string{Name})
		require.NoError(t, err)
		require.Equal(t, tc.seesControl, b.Structure.HasBlock(control), tc.user.ID)
		require.Equal(t, tc.seesControl, b.Structure.HasBlock(key("html", "control")), tc.user.ID)
		require.Equal(t, tc.seesTreatment, b.Structure.HasBlock(treatment), tc.user.ID)
		require.True(t, b.Structure.HasBlock(key("split_test", "ab")))
	}
}

func TestUnmappedChild(t *testing.T) {
	f := &contentstore.Fixture{
		Course: course,
		Blocks: []contentstore.FixtureBlock{
			{
				Ref: "course@course",
				Fields: map[string]any{
					partitions.UserPartitionsField: []any{
						map[string]any{"id": 60, "name": "Experiment", "groups": []any{
							map[string]any{"id": 0, "name": "Control"},
							map[string]any{"id": 1, "name": "Treatment"},
						}},
					},
				},
				Children: []string{"split_test@ab"},
			},
			{
				Ref: "split_test@ab",
				Fields: map[string]any{
					PartitionIDField:  60,
					GroupToChildField: map[string]any{"0": "vertical@a", "1": "vertical@a", "7": "vertical@b"},
				},
				Children: []string{"vertical@a", "vertical@b", "vertical@c"},
			},
			{Ref: "vertical@a"},
			{Ref: "vertical@b"},
			{Ref: "vertical@c"},
		},
	}
	nodes, err := f.Nodes()
	require.NoError(t, err)
	m := newManager(t, contentstore.NewMem(nodes...))

	_, raw, err := m.GetBlocksWithRaw(context.Background(), transformer.User{ID: "bob"}, root, nil)
	require.NoError(t, err)
	v, err := raw.Get(Name, AssignmentField, key("vertical", "a"))
	require.NoError(t, err)
	require.Equal(t, &Assignment{PartitionID: 60, Groups: []int{0, 1}}, v)
	// Group 7 is not declared by the partition, so vertical@b is shown to
	// nobody, like vertical@c.
	for _, id := range []string{"b", "c"} {
		v, err := raw.Get(Name, AssignmentField, key("vertical", id))
		require.NoError(t, err)
		require.Equal(t, &Assignment{PartitionID: 60, Groups: []int{}}, v)
	}

	b, err := m.GetBlocks(context.Background(), transformer.User{ID: "bob"}, root, []string{Name})
	require.NoError(t, err)
	require.Equal(t, []base.BlockKey{key("vertical", "a")}, b.Structure.Children(key("split_test", "ab")))
}

func TestAssignmentEncoding(t *testing.T) {
	a := &Assignment{PartitionID: 60, Groups: []int{0, 1}}
	b, err := blobfmt.EncodeValue(a)
	require.NoError(t, err)
	got, err := blobfmt.DecodeValue(b)
	require.NoError(t, err)
	require.Equal(t, a, got)

	var nilAssignment *Assignment
	require.True(t, nilAssignment.Allows(nil))
	require.False(t, a.Allows(nil))
	require.True(t, a.Allows(map[int]int{60: 1}))
}
