// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package transformer defines the two-phase contract implemented by block
// transformers, and the registry the pipeline resolves them from.
//
// Collect runs once per cache miss for every registered transformer and sees
// the whole course. Its output is cached and shared by every request. Transform
// runs on every request, for the transformers the request names, in the order
// it names them, and may remove blocks from the live structure.
package transformer

import (
	"context"

	"github.com/cockroachdb/blockcache/fields"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/structure"
)

// BlockKey exports the base.BlockKey type.
type BlockKey = base.BlockKey

// Transformer is implemented by every pluggable pass over a block structure.
type Transformer interface {
	// Name uniquely identifies the transformer in a Registry and in cached
	// blobs.
	Name() string
	// Version must be bumped whenever the shape or meaning of collected data
	// changes. Cached entries collected at another version are discarded.
	Version() int
	// RequiredFields names the raw content-store fields Collect reads.
	RequiredFields() []string
	// Collect computes per-block annotations. It must be a pure function of
	// the structure and the raw fields, and may only write through cd.Fields
	// and cd.SetData.
	Collect(ctx context.Context, cd *CollectData) error
	// Transform filters the live structure for a user, using the data this
	// transformer collected.
	Transform(ctx context.Context, user UserInfo, td *TransformData) error
}

// CollectData is handed to Transformer.Collect.
type CollectData struct {
	CourseKey string
	// Structure is write protected.
	Structure structure.Reader
	// XBlockFields holds the raw content-store fields named by the
	// RequiredFields of every registered transformer. It is write protected.
	XBlockFields fields.Reader
	// Fields is owned by the transformer. It starts with no declared fields.
	Fields *fields.Values

	data any
}

// NewCollectData wraps s and raw in write-protected views and allocates an
// empty transformer-scoped field store over m.
func NewCollectData(
	courseKey string, s structure.Reader, raw *fields.Values, m *fields.IndexMapping,
) *CollectData {
	return &CollectData{
		CourseKey:    courseKey,
		Structure:    structure.ReadOnly(s),
		XBlockFields: fields.ReadOnly(raw),
		Fields:       fields.NewBlank(m),
	}
}

// SetData records transformer-wide data, such as the course's partition
// definitions. The value must be encodable with msgpack.
func (cd *CollectData) SetData(v any) { cd.data = v }

// Data returns the value recorded by SetData.
func (cd *CollectData) Data() any { return cd.data }

// TransformData is handed to Transformer.Transform.
type TransformData struct {
	CourseKey string
	Structure structure.Mutable
	// Fields holds the annotations collected by this transformer.
	Fields fields.Reader
	// Data is the value the transformer passed to CollectData.SetData.
	Data any
	// RemoveOrphans controls what happens to the descendants of a removed
	// block. When set, descendants reachable only through removed blocks are
	// left unreachable and dropped by the final prune. Otherwise they are
	// reattached to the parents of the removed block.
	RemoveOrphans bool
}

// KeepDescendants is the keepDescendants argument a transformer passes to
// RemoveBlock and RemoveBlockIf.
func (td *TransformData) KeepDescendants() bool { return !td.RemoveOrphans }

// UserInfo is the per-request user context.
type UserInfo interface {
	UserID() string
	// HasStaffAccess reports staff access to the course. Filtering
	// transformers are no-ops for staff.
	HasStaffAccess() bool
}

// User is a plain UserInfo.
type User struct {
	ID    string
	Staff bool
}

var _ UserInfo = User{}

// UserID implements UserInfo.
func (u User) UserID() string { return u.ID }

// HasStaffAccess implements UserInfo.
func (u User) HasStaffAccess() bool { return u.Staff }
