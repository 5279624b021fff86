// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package partitions implements the user partition transformer, which hides
// blocks restricted to groups the requesting user does not belong to.
//
// A course declares its user partitions (cohorts, experiments, ...) in the
// user_partitions field of its root block. A block restricts access through
// its group_access field, which maps a partition id to the ids of the groups
// allowed to see it. Restrictions are inherited: a block is only visible to
// users allowed by the block itself and by at least one of its parents.
package partitions

import (
	"context"
	"slices"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/transformer"
	"github.com/cockroachdb/errors"
)

const (
	// Name is the registered name of the transformer.
	Name = "user_partitions"
	// Version of the collected data.
	Version = 1

	// UserPartitionsField is the root block field declaring the partitions.
	UserPartitionsField = "user_partitions"
	// GroupAccessField is the per-block restriction field.
	GroupAccessField = "group_access"

	// MergedAccessField is the collected per-block annotation holding a
	// *GroupAccess.
	MergedAccessField = "merged_group_access"
)

// Group is one group of a UserPartition.
type Group struct {
	ID   int    `yaml:"id" msgpack:"id"`
	Name string `yaml:"name" msgpack:"name"`
}

// UserPartition is a course-wide segmentation of users into groups.
type UserPartition struct {
	ID     int     `yaml:"id" msgpack:"id"`
	Name   string  `yaml:"name" msgpack:"name"`
	Scheme string  `yaml:"scheme,omitempty" msgpack:"scheme,omitempty"`
	Groups []Group `yaml:"groups" msgpack:"groups"`
}

// HasGroup returns true if the partition defines a group with the given id.
func (p *UserPartition) HasGroup(id int) bool {
	return slices.ContainsFunc(p.Groups, func(g Group) bool { return g.ID == id })
}

// GroupResolver resolves the group a user is assigned to in each partition.
type GroupResolver interface {
	// UserGroups returns a map from partition id to group id. Partitions the
	// user is not assigned in are absent.
	UserGroups(
		ctx context.Context, courseKey string, user transformer.UserInfo, partitions []UserPartition,
	) (map[int]int, error)
}

// StaticGroups is a GroupResolver backed by a fixed table of user id to
// (partition id to group id).
type StaticGroups map[string]map[int]int

var _ GroupResolver = StaticGroups(nil)

// UserGroups implements GroupResolver.
func (s StaticGroups) UserGroups(
	_ context.Context, _ string, user transformer.UserInfo, partitions []UserPartition,
) (map[int]int, error) {
	out := make(map[int]int)
	for _, p := range partitions {
		if g, ok := s[user.UserID()][p.ID]; ok && p.HasGroup(g) {
			out[p.ID] = g
		}
	}
	return out, nil
}

// Transformer is the user partition transformer.
type Transformer struct {
	Groups GroupResolver
}

var _ transformer.Transformer = (*Transformer)(nil)

// New returns a transformer resolving group membership through groups.
func New(groups GroupResolver) *Transformer {
	return &Transformer{Groups: groups}
}

// Name implements transformer.Transformer.
func (*Transformer) Name() string { return Name }

// Version implements transformer.Transformer.
func (*Transformer) Version() int { return Version }

// RequiredFields implements transformer.Transformer.
func (*Transformer) RequiredFields() []string {
	return []string{GroupAccessField, UserPartitionsField}
}

// CoursePartitions reads the partitions declared on the root block.
func CoursePartitions(raw fields.Reader, root base.BlockKey) ([]UserPartition, error) {
	ps, _, err := fields.As[[]UserPartition](raw, UserPartitionsField, root)
	return ps, err
}

// Collect implements transformer.Transformer. The course partitions are
// recorded as transformer data, and every block is annotated with its merged
// group access.
func (t *Transformer) Collect(ctx context.Context, cd *transformer.CollectData) error {
	root := cd.Structure.Root()
	ps, err := CoursePartitions(cd.XBlockFields, root)
	if err != nil {
		return err
	}
	cd.SetData(&Partitions{List: ps})
	if len(ps) == 0 {
		return nil
	}

	cd.Fields.Declare(MergedAccessField)
	merged := make(map[base.BlockKey]*GroupAccess)
	for k := range cd.Structure.Topological(nil) {
		own, _, err := fields.As[map[int][]int](cd.XBlockFields, GroupAccessField, k)
		if err != nil {
			return err
		}
		var parents []*GroupAccess
		for _, p := range cd.Structure.Parents(k) {
			if pa, ok := merged[p]; ok {
				parents = append(parents, pa)
			}
		}
		ga := Merge(ps, own, parents)
		merged[k] = ga
		if err := cd.Fields.Set(MergedAccessField, k, ga); err != nil {
			return err
		}
	}
	return nil
}

// Transform implements transformer.Transformer. It removes every block whose
// merged group access excludes the user. Staff see everything.
func (t *Transformer) Transform(
	ctx context.Context, user transformer.UserInfo, td *transformer.TransformData,
) error {
	data, _ := td.Data.(*Partitions)
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
		v, err := td.Fields.Get(MergedAccessField, k)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return false
		}
		ga, _ := v.(*GroupAccess)
		return !ga.Allows(userGroups)
	}, td.KeepDescendants())
	return firstErr
}
