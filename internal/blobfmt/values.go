// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobfmt

import (
	"bytes"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Values are encoded with msgpack. Map keys are sorted so that encoding is
// deterministic. Decoding into interface values is loose: every integer comes
// back as int64 or uint64 and every float as float64. Types that must survive
// a round trip exactly are registered as msgpack extensions with
// msgpack.RegisterExt by the package that defines them.

// EncodeValue encodes a single value.
func EncodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrapf(err, "blockcache: encoding %T", v)
	}
	return buf.Bytes(), nil
}

// DecodeValue decodes a value produced by EncodeValue.
func DecodeValue(b []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, base.MarkCorruptionError(errors.Wrap(err, "blockcache: decoding value"))
	}
	return v, nil
}

// EncodeColumn encodes a field column.
func EncodeColumn(col []any) ([]byte, error) {
	if col == nil {
		col = []any{}
	}
	return EncodeValue(col)
}

// DecodeColumn decodes a field column and checks that it holds n values.
func DecodeColumn(b []byte, n int) ([]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	l, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, base.MarkCorruptionError(errors.Wrap(err, "blockcache: decoding column"))
	}
	if l != n {
		return nil, base.CorruptionErrorf("blockcache: column holds %d values for %d blocks", l, n)
	}
	col := make([]any, n)
	for i := range col {
		if col[i], err = dec.DecodeInterface(); err != nil {
			return nil, base.MarkCorruptionError(errors.Wrap(err, "blockcache: decoding column"))
		}
	}
	return col, nil
}
