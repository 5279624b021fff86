// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types used across blockcache: block keys,
// the logger interface and the error taxonomy.
//
// # Errors
//
// Errors are classified with sentinels and errors.Mark rather than with
// distinct types. Callers test for a class with errors.Is:
//
//   - ErrUnregisteredTransformer: a request named a transformer that is not in
//     the registry. Returned before any work is done.
//   - ErrUnknownBlock, ErrUnknownField: a transformer asked a field store about
//     a key or field it never declared.
//   - ErrWriteNotAllowed: a transformer attempted to mutate the block structure
//     or the raw fields during the collect phase.
//   - ErrGraphCycle: the block graph contains a cycle.
//   - ErrCorruption: a cached blob could not be decoded. The cache layer never
//     surfaces this class; it is treated as a miss.
//   - ErrNotFound, ErrItemNotFound: the content store does not have the
//     requested root, or a child referenced by a fetched subtree.
package base
