// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package transformer

import (
	"context"
	"testing"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/structure"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type nopTransformer struct {
	name   string
	fields []string
}

func (n nopTransformer) Name() string             { return n.name }
func (n nopTransformer) Version() int             { return 1 }
func (n nopTransformer) RequiredFields() []string { return n.fields }

func (nopTransformer) Collect(context.Context, *CollectData) error { return nil }

func (nopTransformer) Transform(context.Context, UserInfo, *TransformData) error { return nil }

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(
		nopTransformer{name: "visibility", fields: []string{"visible_to_staff_only"}},
		nopTransformer{name: "partitions", fields: []string{"group_access", "user_partitions"}},
		nopTransformer{name: "library", fields: []string{"group_access"}},
	)
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())
	require.Equal(t, []string{"library", "partitions", "visibility"}, r.Names())
	require.Equal(t, []string{"group_access", "user_partitions", "visible_to_staff_only"}, r.RequiredFields())

	var names []string
	for _, tr := range r.Registered() {
		names = append(names, tr.Name())
	}
	require.Equal(t, r.Names(), names)

	tr, ok := r.Lookup("partitions")
	require.True(t, ok)
	require.Equal(t, "partitions", tr.Name())
	_, ok = r.Lookup("nope")
	require.False(t, ok)

	require.Nil(t, r.FindUnregistered([]string{"visibility", "library"}))
	require.Equal(t, []string{"b", "a"}, r.FindUnregistered([]string{"b", "visibility", "a"}))

	ts, err := r.Resolve([]string{"visibility", "library"})
	require.NoError(t, err)
	require.Equal(t, "visibility", ts[0].Name())
	require.Equal(t, "library", ts[1].Name())

	_, err = r.Resolve([]string{"library", "nope"})
	require.True(t, errors.Is(err, base.ErrUnregisteredTransformer))
	require.Contains(t, err.Error(), "nope")
}

func TestRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry(nopTransformer{name: "a"}, nopTransformer{name: "a"})
	require.Error(t, err)
	_, err = NewRegistry(nopTransformer{})
	require.Error(t, err)
}

func TestCollectDataWriteProtected(t *testing.T) {
	root := base.MakeBlockKey("Org+Course+Run", "course", "course")
	child := base.MakeBlockKey("Org+Course+Run", "chapter", "c1")
	s := structure.New(root)
	s.AddRelation(root, child)
	m := fields.NewIndexMapping(s.BlockKeys())
	raw := fields.NewBlank(m, "display_name")

	cd := NewCollectData("Org+Course+Run", s, raw, m)
	_, isMutable := cd.Structure.(structure.Mutable)
	require.True(t, isMutable)
	require.Panics(t, func() { cd.Structure.(structure.Mutable).RemoveBlock(child, false) })
	require.True(t, s.HasBlock(child))

	cd.Fields.Declare("visible")
	require.NoError(t, cd.Fields.Set("visible", child, false))
	require.Equal(t, []string{"visible"}, cd.Fields.Fields())
	require.Equal(t, []string{"display_name"}, raw.Fields())

	cd.SetData("data")
	require.Equal(t, "data", cd.Data())
}
