// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package splittest implements the split test transformer. A split_test block
// shows each user only the child assigned to the user's group in the block's
// experiment partition.
package splittest

import (
	"context"
	"slices"
	"strconv"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/blockcache/transformers/partitions"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Name is the registered name of the transformer.
	Name = "split_test"
	// Version of the collected data.
	Version = 1

	// BlockType is the type of split test blocks.
	BlockType = "split_test"
	// PartitionIDField names the partition a split test block draws its
	// groups from.
	PartitionIDField = "user_partition_id"
	// GroupToChildField maps group ids to the child shown to the group.
	GroupToChildField = "group_id_to_child"

	// AssignmentField is the collected per-block annotation holding an
	// *Assignment.
	AssignmentField = "split_test_assignment"
)

const assignmentExtID int8 = 3

func init() {
	msgpack.RegisterExt(assignmentExtID, (*Assignment)(nil))
}

// Assignment restricts a block to the listed groups of a partition. A block
// under a split test that no group maps to has no groups and is shown to
// nobody.
type Assignment struct {
	PartitionID int   `msgpack:"partition"`
	Groups      []int `msgpack:"groups"`
}

// Allows returns true if a user assigned to userGroups (partition id to group
// id) may see the block.
func (a *Assignment) Allows(userGroups map[int]int) bool {
	if a == nil {
		return true
	}
	g, ok := userGroups[a.PartitionID]
	return ok && slices.Contains(a.Groups, g)
}

type assignment Assignment

// MarshalMsgpack implements msgpack.Marshaler.
func (a *Assignment) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal((*assignment)(a))
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (a *Assignment) UnmarshalMsgpack(b []byte) error {
	return msgpack.Unmarshal(b, (*assignment)(a))
}

// Transformer is the split test transformer.
type Transformer struct {
	Groups partitions.GroupResolver
}

var _ transformer.Transformer = (*Transformer)(nil)

// New returns a transformer resolving group membership through groups.
func New(groups partitions.GroupResolver) *Transformer {
	return &Transformer{Groups: groups}
}

// Name implements transformer.Transformer.
func (*Transformer) Name() string { return Name }

// Version implements transformer.Transformer.
func (*Transformer) Version() int { return Version }

// RequiredFields implements transformer.Transformer.
func (*Transformer) RequiredFields() []string {
	return []string{GroupToChildField, PartitionIDField, partitions.UserPartitionsField}
}

// Collect implements transformer.Transformer. Every child of a split test
// block, and every child of such a child, is annotated with the groups it is
// shown to.
func (t *Transformer) Collect(ctx context.Context, cd *transformer.CollectData) error {
	ps, err := partitions.CoursePartitions(cd.XBlockFields, cd.Structure.Root())
	if err != nil {
		return err
	}
	cd.SetData(&partitions.Partitions{List: ps})
	cd.Fields.Declare(AssignmentField)

	isSplitTest := func(k base.BlockKey) bool { return k.Type == BlockType }
	for k := range cd.Structure.Topological(isSplitTest) {
		pid, assigned, ok, err := collectBlock(cd, ps, k)
		if err != nil {
			return errors.Wrapf(err, "collecting split test %s", k)
		}
		if !ok {
			continue
		}
		for _, child := range cd.Structure.Children(k) {
			a := assigned[child]
			if a == nil {
				a = &Assignment{PartitionID: pid, Groups: []int{}}
			}
			if err := cd.Fields.Set(AssignmentField, child, a); err != nil {
				return err
			}
			for _, grandchild := range cd.Structure.Children(child) {
				if err := cd.Fields.Set(AssignmentField, grandchild, a); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// collectBlock returns the partition of split test k and the assignments of
// its children. It returns false if k names no partition the course
// declares.
func collectBlock(
	cd *transformer.CollectData, ps []partitions.UserPartition, k base.BlockKey,
) (pid int, assigned map[base.BlockKey]*Assignment, ok bool, err error) {
	pid, ok, err = fields.As[int](cd.XBlockFields, PartitionIDField, k)
	if err != nil || !ok {
		return 0, nil, false, err
	}
	i := slices.IndexFunc(ps, func(p partitions.UserPartition) bool { return p.ID == pid })
	if i < 0 {
		return 0, nil, false, nil
	}
	groupToChild, _, err := fields.As[map[string]string](cd.XBlockFields, GroupToChildField, k)
	if err != nil {
		return 0, nil, false, err
	}

	assigned = make(map[base.BlockKey]*Assignment)
	for g, ref := range groupToChild {
		gid, err := strconv.Atoi(g)
		if err != nil {
			return 0, nil, false, errors.Wrapf(err, "group id %q", g)
		}
		if !ps[i].HasGroup(gid) {
			continue
		}
		child, err := base.ParseBlockRef(cd.CourseKey, ref)
		if err != nil {
			return 0, nil, false, err
		}
		a := assigned[child]
		if a == nil {
			a = &Assignment{PartitionID: pid}
			assigned[child] = a
		}
		a.Groups = append(a.Groups, gid)
		slices.Sort(a.Groups)
	}
	return pid, assigned, true, nil
}

// Transform implements transformer.Transformer. Blocks assigned to groups the
// user is not in are removed. Staff see every group.
func (t *Transformer) Transform(
	ctx context.Context, user transformer.UserInfo, td *transformer.TransformData,
) error {
	data, _ := td.Data.(*partitions.Partitions)
	if data == nil || len(data.List) == 0 || user.HasStaffAccess() {
		return nil
	}
	if t.Groups == nil {
		return errors.AssertionFailedf("%s transformer has no group resolver", Name)
	}
	userGroups, err := t.Groups.UserGroups(ctx, td.CourseKey, user, data.List)
	if err != nil {
		return errors.Wrapf(err, "resolving groups of user %s", user.UserID())
	}

	var firstErr error
	td.Structure.RemoveBlockIf(func(k base.BlockKey) bool {
		v, err := td.Fields.Get(AssignmentField, k)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return false
		}
		a, _ := v.(*Assignment)
		return !a.Allows(userGroups)
	}, td.KeepDescendants())
	return firstErr
}
