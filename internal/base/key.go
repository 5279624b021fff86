// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"cmp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

const (
	blockKeyPrefix = "block-v1:"
	typeMarker     = "+type@"
	blockMarker    = "+block@"
)

// BlockKey identifies a single block of course content. A block may have
// several parents, so the key names the block and not a path to it.
//
// Keys are totally ordered by (Course, Type, ID). The order is used to assign
// stable column indexes to blocks, so it must never change.
type BlockKey struct {
	Course string
	Type   string
	ID     string
}

// MakeBlockKey constructs a BlockKey.
func MakeBlockKey(course, blockType, id string) BlockKey {
	return BlockKey{Course: course, Type: blockType, ID: id}
}

// ParseBlockKey parses the string form produced by BlockKey.String, e.g.
// "block-v1:BCU+Fast+101+type@chapter+block@chapter_0".
func ParseBlockKey(s string) (BlockKey, error) {
	rest, ok := strings.CutPrefix(s, blockKeyPrefix)
	if !ok {
		return BlockKey{}, errors.Newf("blockcache: block key %q lacks %q prefix", s, blockKeyPrefix)
	}
	ti := strings.LastIndex(rest, typeMarker)
	bi := strings.LastIndex(rest, blockMarker)
	if ti < 0 || bi < ti {
		return BlockKey{}, errors.Newf("blockcache: malformed block key %q", s)
	}
	k := BlockKey{
		Course: rest[:ti],
		Type:   rest[ti+len(typeMarker) : bi],
		ID:     rest[bi+len(blockMarker):],
	}
	if k.Type == "" || k.ID == "" {
		return BlockKey{}, errors.Newf("blockcache: malformed block key %q", s)
	}
	return k, nil
}

// ParseBlockRef resolves a block reference found in course content. A
// reference is either a full block key or the short "type@id" form, which
// names a block of course.
func ParseBlockRef(course, ref string) (BlockKey, error) {
	if strings.HasPrefix(ref, blockKeyPrefix) {
		return ParseBlockKey(ref)
	}
	typ, id, ok := strings.Cut(ref, "@")
	if !ok || typ == "" || id == "" {
		return BlockKey{}, errors.Newf("blockcache: malformed block reference %q", ref)
	}
	return MakeBlockKey(course, typ, id), nil
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to or
// after o.
func (k BlockKey) Compare(o BlockKey) int {
	if c := cmp.Compare(k.Course, o.Course); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Type, o.Type); c != 0 {
		return c
	}
	return cmp.Compare(k.ID, o.ID)
}

// CompareBlockKeys is BlockKey.Compare as a free function, suitable for
// slices.SortFunc.
func CompareBlockKeys(a, b BlockKey) int {
	return a.Compare(b)
}

// IsZero returns true for the zero BlockKey.
func (k BlockKey) IsZero() bool {
	return k == BlockKey{}
}

// String implements fmt.Stringer.
func (k BlockKey) String() string {
	return blockKeyPrefix + k.Course + typeMarker + k.Type + blockMarker + k.ID
}

// SafeFormat implements redact.SafeFormatter. Block keys are content
// identifiers, never user data.
func (k BlockKey) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(k.String()))
}
