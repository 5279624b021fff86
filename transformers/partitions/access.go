// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package partitions

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Extension ids of the types this package stores in cached blobs.
const (
	groupAccessExtID int8 = 1
	partitionsExtID  int8 = 2
)

func init() {
	msgpack.RegisterExt(groupAccessExtID, (*GroupAccess)(nil))
	msgpack.RegisterExt(partitionsExtID, (*Partitions)(nil))
}

// GroupAccess is the merged group restriction of a block. A partition absent
// from Access is unrestricted. A partition present in Access admits only the
// listed groups; an empty list admits nobody.
//
// A nil *GroupAccess is unrestricted.
type GroupAccess struct {
	// Access maps partition id to sorted group ids.
	Access map[int][]int `msgpack:"access"`
}

// Merge computes the group access of a block from the course partitions, the
// block's own group_access field and the merged access of its parents.
//
// For each partition, the block's own restriction (an empty list is no
// restriction) is intersected with the inherited one. The inherited
// restriction is the union of the restrictions of the parents that restrict
// the partition. Parents that do not restrict it contribute nothing, so a
// block is only unrestricted through inheritance when no parent restricts the
// partition.
func Merge(ps []UserPartition, own map[int][]int, parents []*GroupAccess) *GroupAccess {
	ga := &GroupAccess{}
	for _, p := range ps {
		var block []int
		if ids := own[p.ID]; len(ids) > 0 {
			block = sortedSet(ids)
		}
		inherited, inheritedRestricted := inheritedAccess(p.ID, parents)
		merged, restricted := intersect(block, len(own[p.ID]) > 0, inherited, inheritedRestricted)
		if restricted {
			if ga.Access == nil {
				ga.Access = make(map[int][]int)
			}
			ga.Access[p.ID] = merged
		}
	}
	return ga
}

// inheritedAccess returns the union of the restricting parents' groups for
// the partition. It returns false if no parent restricts the partition.
func inheritedAccess(partition int, parents []*GroupAccess) ([]int, bool) {
	union := []int{}
	restricted := false
	for _, pa := range parents {
		if ids, ok := pa.lookup(partition); ok {
			restricted = true
			union = append(union, ids...)
		}
	}
	if !restricted {
		return nil, false
	}
	return sortedSet(union), true
}

func (ga *GroupAccess) lookup(partition int) ([]int, bool) {
	if ga == nil {
		return nil, false
	}
	ids, ok := ga.Access[partition]
	return ids, ok
}

// intersect intersects two optional restrictions. An absent restriction is
// the universe.
func intersect(a []int, hasA bool, b []int, hasB bool) ([]int, bool) {
	switch {
	case !hasA && !hasB:
		return nil, false
	case !hasA:
		return b, true
	case !hasB:
		return a, true
	}
	out := []int{}
	for _, id := range a {
		if _, found := slices.BinarySearch(b, id); found {
			out = append(out, id)
		}
	}
	return out, true
}

func sortedSet(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Allows returns true if a user assigned to userGroups (partition id to
// group id) may access the block. A user with no group in a restricted
// partition is denied.
func (ga *GroupAccess) Allows(userGroups map[int]int) bool {
	if ga == nil {
		return true
	}
	for partition, allowed := range ga.Access {
		g, ok := userGroups[partition]
		if !ok {
			return false
		}
		if _, found := slices.BinarySearch(allowed, g); !found {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (ga *GroupAccess) String() string {
	if ga == nil || len(ga.Access) == 0 {
		return "unrestricted"
	}
	var parts []string
	for _, p := range slices.Sorted(maps.Keys(ga.Access)) {
		parts = append(parts, fmt.Sprintf("%d:%v", p, ga.Access[p]))
	}
	return strings.Join(parts, " ")
}

type groupAccess GroupAccess

// MarshalMsgpack implements msgpack.Marshaler.
func (ga *GroupAccess) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal((*groupAccess)(ga))
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (ga *GroupAccess) UnmarshalMsgpack(b []byte) error {
	return msgpack.Unmarshal(b, (*groupAccess)(ga))
}

// Partitions is the data the transformer records for a course.
type Partitions struct {
	List []UserPartition `msgpack:"list"`
}

type partitions Partitions

// MarshalMsgpack implements msgpack.Marshaler.
func (p *Partitions) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal((*partitions)(p))
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (p *Partitions) UnmarshalMsgpack(b []byte) error {
	return msgpack.Unmarshal(b, (*partitions)(p))
}
