// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blockcache

import (
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/transformer"
)

// BlockKey exports the base.BlockKey type.
type BlockKey = base.BlockKey

// MakeBlockKey constructs a block key.
func MakeBlockKey(course, blockType, id string) BlockKey {
	return base.MakeBlockKey(course, blockType, id)
}

// ParseBlockKey parses the string form of a block key.
func ParseBlockKey(s string) (BlockKey, error) {
	return base.ParseBlockKey(s)
}

// Logger exports the base.Logger type.
type Logger = base.Logger

// DefaultLogger exports the base.DefaultLogger type.
type DefaultLogger = base.DefaultLogger

// Transformer exports the transformer.Transformer type.
type Transformer = transformer.Transformer

// UserInfo exports the transformer.UserInfo type.
type UserInfo = transformer.UserInfo

// User exports the transformer.User type.
type User = transformer.User

// Errors returned by the pipeline. Test for them with errors.Is.
var (
	ErrNotFound                = base.ErrNotFound
	ErrItemNotFound            = base.ErrItemNotFound
	ErrUnknownBlock            = base.ErrUnknownBlock
	ErrUnknownField            = base.ErrUnknownField
	ErrWriteNotAllowed         = base.ErrWriteNotAllowed
	ErrGraphCycle              = base.ErrGraphCycle
	ErrUnregisteredTransformer = base.ErrUnregisteredTransformer
	ErrCorruption              = base.ErrCorruption
)
