// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package partitions

import (
	"context"
	"testing"

	"github.com/cockroachdb/blockcache"
	"github.com/cockroachdb/blockcache/backend"
	"github.com/cockroachdb/blockcache/contentstore"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/blobfmt"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

var coursePartitions = []UserPartition{
	{ID: 50, Name: "Cohorts", Groups: []Group{{1, "Red"}, {2, "Blue"}}},
	{ID: 60, Name: "Experiment", Groups: []Group{{0, "Control"}, {1, "Treatment"}}},
}

func TestMerge(t *testing.T) {
	restricted := func(access map[int][]int) *GroupAccess { return &GroupAccess{Access: access} }
	for _, tc := range []struct {
		name    string
		own     map[int][]int
		parents []*GroupAccess
		want    string
	}{
		{name: "unrestricted", want: "unrestricted"},
		{name: "own", own: map[int][]int{50: {2, 1, 1}}, want: "50:[1 2]"},
		{name: "empty-own", own: map[int][]int{50: {}}, want: "unrestricted"},
		{name: "undeclared-partition", own: map[int][]int{99: {1}}, want: "unrestricted"},
		{
			name:    "intersect",
			own:     map[int][]int{50: {1, 2}},
			parents: []*GroupAccess{restricted(map[int][]int{50: {2}})},
			want:    "50:[2]",
		},
		{
			name:    "disjoint",
			own:     map[int][]int{50: {1}},
			parents: []*GroupAccess{restricted(map[int][]int{50: {2}})},
			want:    "50:[]",
		},
		{
			name: "union-of-parents",
			parents: []*GroupAccess{
				restricted(map[int][]int{50: {1}}),
				restricted(map[int][]int{50: {2}, 60: {0}}),
			},
			want: "50:[1 2] 60:[0]",
		},
		{
			// Parents that do not restrict a partition do not lift the
			// restriction inherited through the others.
			name: "unrestricted-parent",
			parents: []*GroupAccess{
				restricted(map[int][]int{50: {1}}),
				{},
			},
			want: "50:[1]",
		},
		{
			name:    "nil-parent",
			parents: []*GroupAccess{nil, restricted(map[int][]int{50: {1}})},
			want:    "50:[1]",
		},
		{
			name: "all-parents-unrestricted",
			parents: []*GroupAccess{
				nil,
				restricted(map[int][]int{60: {1}}),
			},
			want: "60:[1]",
		},
		{
			name: "parent-admits-nobody",
			parents: []*GroupAccess{
				restricted(map[int][]int{50: {}}),
				{},
			},
			want: "50:[]",
		},
		{
			name:    "independent-partitions",
			own:     map[int][]int{60: {1}},
			parents: []*GroupAccess{restricted(map[int][]int{50: {1}})},
			want:    "50:[1] 60:[1]",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Merge(coursePartitions, tc.own, tc.parents).String())
		})
	}
}

// A block reachable through a restricted and an unrestricted parent stays
// restricted.
func TestMergeMixedParents(t *testing.T) {
	red := &GroupAccess{Access: map[int][]int{50: {1}}}
	var open *GroupAccess
	ga := Merge(coursePartitions, nil, []*GroupAccess{red, open})
	require.True(t, ga.Allows(map[int]int{50: 1}))
	require.False(t, ga.Allows(map[int]int{50: 2}))
	require.False(t, ga.Allows(nil))
}

func TestAllows(t *testing.T) {
	var unrestricted *GroupAccess
	require.True(t, unrestricted.Allows(nil))
	require.True(t, (&GroupAccess{}).Allows(nil))

	ga := &GroupAccess{Access: map[int][]int{50: {1, 2}, 60: {0}}}
	require.True(t, ga.Allows(map[int]int{50: 2, 60: 0}))
	require.False(t, ga.Allows(map[int]int{50: 2, 60: 1}))
	require.False(t, ga.Allows(map[int]int{50: 1}))
	require.False(t, (&GroupAccess{Access: map[int][]int{50: {}}}).Allows(map[int]int{50: 1}))
}

func TestStaticGroups(t *testing.T) {
	groups := StaticGroups{"alice": {50: 1, 60: 7, 99: 1}}
	got, err := groups.UserGroups(context.Background(), "course", transformer.User{ID: "alice"}, coursePartitions)
	require.NoError(t, err)
	require.Equal(t, map[int]int{50: 1}, got)

	got, err = groups.UserGroups(context.Background(), "course", transformer.User{ID: "nobody"}, coursePartitions)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEncoding(t *testing.T) {
	for _, v := range []any{
		&GroupAccess{Access: map[int][]int{50: {1, 2}}},
		&Partitions{List: coursePartitions},
	} {
		b, err := blobfmt.EncodeValue(v)
		require.NoError(t, err)
		got, err := blobfmt.DecodeValue(b)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

var demoRoot = base.MakeBlockKey("Org+Demo+2025", "course", "course")

func demoKey(typ, id string) base.BlockKey {
	return base.MakeBlockKey("Org+Demo+2025", typ, id)
}

func newManager(t *testing.T, groups GroupResolver) *blockcache.Manager {
	store, err := contentstore.LoadFile("../../contentstore/testdata/course.yaml")
	require.NoError(t, err)
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

func TestTransform(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, StaticGroups{
		"alice": {50: 1},
		"bob":   {50: 2},
	})
	cohortBlocks := []base.BlockKey{
		demoKey("chapter", "cohorts"),
		demoKey("sequential", "red"),
		demoKey("vertical", "red"),
		demoKey("html", "red"),
	}
	for _, tc := range []struct {
		user    transformer.User
		visible bool
	}{
		{transformer.User{ID: "alice"}, true},
		{transformer.User{ID: "bob"}, false},
		{transformer.User{ID: "carol"}, false},
		{transformer.User{ID: "bob", Staff: true}, true},
	} {
		b, err := m.GetBlocks(ctx, tc.user, demoRoot, []string{Name})
		require.NoError(t, err)
		for _, k := range cohortBlocks {
			require.Equal(t, tc.visible, b.Structure.HasBlock(k), "%s: %s", tc.user.ID, k)
		}
		// The shared vertical is also a child of the unrestricted experiment
		// sequential, but inherits the cohort restriction all the same.
		require.Equal(t, tc.visible, b.Structure.HasBlock(demoKey("vertical", "shared")), tc.user.ID)
		require.Equal(t, tc.visible, b.Structure.HasBlock(demoKey("html", "shared")), tc.user.ID)
	}
}

type failingGroups struct{ err error }

func (f failingGroups) UserGroups(
	context.Context, string, transformer.UserInfo, []UserPartition,
) (map[int]int, error) {
	return nil, f.err
}

func TestTransformResolverError(t *testing.T) {
	boom := errors.New("boom")
	m := newManager(t, failingGroups{err: boom})
	_, err := m.GetBlocks(context.Background(), transformer.User{ID: "alice"}, demoRoot, []string{Name})
	require.True(t, errors.Is(err, boom), "%+v", err)

	// Staff never consult the resolver.
	_, err = m.GetBlocks(context.Background(), transformer.User{ID: "alice", Staff: true}, demoRoot, []string{Name})
	require.NoError(t, err)
}

func TestNoPartitions(t *testing.T) {
	store := contentstore.NewMem(
		&contentstore.Node{Key: demoRoot, Children: []base.BlockKey{demoKey("chapter", "a")}},
		&contentstore.Node{
			Key:    demoKey("chapter", "a"),
			Fields: map[string]any{GroupAccessField: map[any]any{50: []any{1}}},
		},
	)
	reg, err := transformer.NewRegistry(New(StaticGroups{}))
	require.NoError(t, err)
	m, err := blockcache.New(&blockcache.Options{
		Registry: reg,
		Cache:    backend.NewMem(),
		Store:    store,
		Logger:   base.NoopLoggerForTesting{},
	})
	require.NoError(t, err)

	// Group access naming a partition the course does not declare is ignored.
	b, err := m.GetBlocks(context.Background(), transformer.User{ID: "alice"}, demoRoot, []string{Name})
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())
}
