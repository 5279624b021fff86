// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound means the content store does not hold the requested root
	// block.
	ErrNotFound = errors.New("blockcache: not found")

	// ErrItemNotFound means a subtree fetch referenced a child that the
	// content store could not produce.
	ErrItemNotFound = errors.New("blockcache: item not found")

	// ErrUnknownBlock is returned when a field store is asked about a block key
	// it has no index for.
	ErrUnknownBlock = errors.New("blockcache: unknown block")

	// ErrUnknownField is returned when a field store is asked about a field
	// that was never declared for it.
	ErrUnknownField = errors.New("blockcache: unknown field")

	// ErrWriteNotAllowed marks attempts to mutate a write-protected view.
	ErrWriteNotAllowed = errors.New("blockcache: write not allowed during collect")

	// ErrGraphCycle means the block graph is not acyclic.
	ErrGraphCycle = errors.New("blockcache: block graph contains a cycle")

	// ErrUnregisteredTransformer means a request named a transformer that is
	// not registered.
	ErrUnregisteredTransformer = errors.New("blockcache: unregistered transformer")

	// ErrCorruption is a marker to indicate that a cached blob is corrupt.
	ErrCorruption = errors.New("blockcache: corruption")
)

// MarkCorruptionError marks given error as a corruption error.
func MarkCorruptionError(err error) error {
	if errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}

// CorruptionErrorf formats according to a format specifier and returns
// the string as an error value that is marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// WriteNotAllowedf returns an error marked ErrWriteNotAllowed naming the
// rejected operation.
func WriteNotAllowedf(op string) error {
	return errors.Mark(
		errors.Newf("blockcache: %s is not allowed during the collect phase", errors.Safe(op)),
		ErrWriteNotAllowed)
}
