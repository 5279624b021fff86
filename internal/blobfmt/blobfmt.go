// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blobfmt defines the serialized form of a cached block structure.
//
// A blob is an envelope around a compressed payload:
//
//	+----------+---------+-------------+----------------+---------------------+
//	| magic(4) | fmt(1)  | algorithm(1)| checksum(8) LE | compressed payload  |
//	+----------+---------+-------------+----------------+---------------------+
//
// The checksum is the xxhash64 of the compressed payload. The payload is a
// sequence of uvarints and length-prefixed byte strings:
//
//	key count, then every block key in sorted order as its course, type and
//	  id (each length-prefixed)
//	root key index
//	per key: child count and child indexes, parent count and parent indexes
//	transformer count, then per transformer:
//	  name, version, data (msgpack), field count, then per field:
//	    name, column (msgpack array with one value per key)
//
// Decoding failures of any kind are marked base.ErrCorruption.
package blobfmt

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/blockcache/internal/compression"
	"github.com/cockroachdb/errors"
)

// FormatVersion is the current envelope version. Blobs written with another
// version are rejected as corrupt.
//
// Version 1 stored block keys in their string form, which cannot represent
// ids containing the "+type@" or "+block@" markers.
const FormatVersion = 2

const (
	magic      = "BKS\x00"
	headerLen  = len(magic) + 1 + 1 + 8
	maxEntries = 1 << 24
)

// Blob is the decoded content of a cached structure.
type Blob struct {
	// Keys holds every block key in sorted order. Indexes into Keys identify
	// blocks everywhere else in the blob, and also index field columns.
	Keys     []base.BlockKey
	Root     int
	Children [][]int
	Parents  [][]int

	Transformers []Transformer
}

// Transformer holds the collected output of one transformer.
type Transformer struct {
	Name    string
	Version int
	// Data is the msgpack encoding of the transformer-wide data.
	Data   []byte
	Fields []Column
}

// Column holds one field of a transformer's field store.
type Column struct {
	Name string
	// Values is the msgpack encoding of a []any with one slot per key.
	Values []byte
}

// Encode serializes b and compresses the payload with setting.
func Encode(b *Blob, setting compression.Setting) ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	payload := b.appendPayload(nil)

	c := compression.GetCompressor(setting)
	defer c.Close()
	compressed, used := c.Compress(nil, payload)

	out := make([]byte, headerLen, headerLen+len(compressed))
	copy(out, magic)
	out[len(magic)] = FormatVersion
	out[len(magic)+1] = byte(used.Algorithm)
	binary.LittleEndian.PutUint64(out[len(magic)+2:], xxhash.Sum64(compressed))
	return append(out, compressed...), nil
}

func (b *Blob) check() error {
	n := len(b.Keys)
	if len(b.Children) != n || len(b.Parents) != n {
		return errors.AssertionFailedf("blob adjacency has %d/%d entries for %d keys",
			len(b.Children), len(b.Parents), n)
	}
	if b.Root < 0 || b.Root >= n {
		return errors.AssertionFailedf("blob root index %d out of range [0,%d)", b.Root, n)
	}
	return nil
}

func (b *Blob) appendPayload(buf []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b.Keys)))
	for _, k := range b.Keys {
		buf = appendString(buf, k.Course)
		buf = appendString(buf, k.Type)
		buf = appendString(buf, k.ID)
	}
	buf = binary.AppendUvarint(buf, uint64(b.Root))
	for i := range b.Keys {
		buf = appendIndexes(buf, b.Children[i])
		buf = appendIndexes(buf, b.Parents[i])
	}
	buf = binary.AppendUvarint(buf, uint64(len(b.Transformers)))
	for _, t := range b.Transformers {
		buf = appendString(buf, t.Name)
		buf = binary.AppendUvarint(buf, uint64(t.Version))
		buf = appendBytes(buf, t.Data)
		buf = binary.AppendUvarint(buf, uint64(len(t.Fields)))
		for _, c := range t.Fields {
			buf = appendString(buf, c.Name)
			buf = appendBytes(buf, c.Values)
		}
	}
	return buf
}

func appendIndexes(buf []byte, idx []int) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(idx)))
	for _, i := range idx {
		buf = binary.AppendUvarint(buf, uint64(i))
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// Header is the decoded blob envelope.
type Header struct {
	FormatVersion byte
	Algorithm     compression.Algorithm
	Checksum      uint64
}

// ReadHeader validates the envelope and returns it together with the
// compressed payload.
func ReadHeader(data []byte) (Header, []byte, error) {
	if len(data) < headerLen {
		return Header{}, nil, base.CorruptionErrorf("blockcache: blob too short: %d bytes", len(data))
	}
	if string(data[:len(magic)]) != magic {
		return Header{}, nil, base.CorruptionErrorf("blockcache: bad blob magic %q", data[:len(magic)])
	}
	h := Header{
		FormatVersion: data[len(magic)],
		Algorithm:     compression.Algorithm(data[len(magic)+1]),
		Checksum:      binary.LittleEndian.Uint64(data[len(magic)+2:]),
	}
	if h.FormatVersion != FormatVersion {
		return h, nil, base.CorruptionErrorf("blockcache: unsupported blob format version %d",
			errors.Safe(h.FormatVersion))
	}
	payload := data[headerLen:]
	if sum := xxhash.Sum64(payload); sum != h.Checksum {
		return h, nil, base.CorruptionErrorf("blockcache: blob checksum mismatch: %016x != %016x",
			sum, h.Checksum)
	}
	return h, payload, nil
}

// Decode validates, decompresses and parses a blob.
func Decode(data []byte) (*Blob, error) {
	h, compressed, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	payload, err := compression.Decompress(h.Algorithm, compressed)
	if err != nil {
		return nil, base.MarkCorruptionError(errors.Wrap(err, "blockcache: decompressing blob"))
	}
	b, err := decodePayload(payload)
	if err != nil {
		return nil, base.MarkCorruptionError(err)
	}
	return b, nil
}

func decodePayload(payload []byte) (*Blob, error) {
	r := reader{buf: payload}
	n := r.count("key count", maxEntries)
	b := &Blob{Keys: make([]base.BlockKey, 0, n)}
	for range n {
		if r.err != nil {
			return nil, r.err
		}
		k := base.BlockKey{
			Course: r.string("block course"),
			Type:   r.string("block type"),
			ID:     r.string("block id"),
		}
		if r.err == nil && (k.Type == "" || k.ID == "") {
			r.err = errors.Newf("blockcache: malformed block key %q", k)
		}
		if len(b.Keys) > 0 && r.err == nil && base.CompareBlockKeys(b.Keys[len(b.Keys)-1], k) >= 0 {
			r.err = errors.Newf("blockcache: block keys out of order at %s", k)
		}
		b.Keys = append(b.Keys, k)
	}
	b.Root = r.index("root", n)
	b.Children = make([][]int, n)
	b.Parents = make([][]int, n)
	for i := 0; i < n && r.err == nil; i++ {
		b.Children[i] = r.indexes("children", n)
		b.Parents[i] = r.indexes("parents", n)
	}
	nt := r.count("transformer count", maxEntries)
	for i := 0; i < nt && r.err == nil; i++ {
		t := Transformer{
			Name:    r.string("transformer name"),
			Version: int(r.uvarint("transformer version")),
			Data:    r.bytes("transformer data"),
		}
		nf := r.count("field count", maxEntries)
		for j := 0; j < nf && r.err == nil; j++ {
			t.Fields = append(t.Fields, Column{
				Name:   r.string("field name"),
				Values: r.bytes("field values"),
			})
		}
		b.Transformers = append(b.Transformers, t)
	}
	if r.err == nil && len(r.buf) > 0 {
		r.err = errors.Newf("blockcache: %d trailing bytes in blob payload", len(r.buf))
	}
	if r.err != nil {
		return nil, r.err
	}
	return b, nil
}

// reader decodes the payload. The first error sticks and turns every later
// read into a no-op returning zero values.
type reader struct {
	buf []byte
	err error
}

func (r *reader) uvarint(what string) uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		r.err = errors.Newf("blockcache: invalid uvarint reading %s", errors.Safe(what))
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *reader) count(what string, limit int) int {
	v := r.uvarint(what)
	if r.err == nil && v > uint64(limit) {
		r.err = errors.Newf("blockcache: %s %d exceeds %d", errors.Safe(what), v, limit)
		return 0
	}
	return int(v)
}

func (r *reader) index(what string, n int) int {
	v := r.uvarint(what)
	if r.err == nil && v >= uint64(n) {
		r.err = errors.Newf("blockcache: %s index %d out of range [0,%d)", errors.Safe(what), v, n)
		return 0
	}
	return int(v)
}

func (r *reader) indexes(what string, n int) []int {
	c := r.count(what, n)
	if c == 0 {
		return nil
	}
	out := make([]int, 0, c)
	for range c {
		out = append(out, r.index(what, n))
	}
	return out
}

func (r *reader) bytes(what string) []byte {
	n := r.uvarint(what)
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.buf)) {
		r.err = errors.Newf("blockcache: %s length %d exceeds remaining %d bytes",
			errors.Safe(what), n, len(r.buf))
		return nil
	}
	if n == 0 {
		return nil
	}
	b := r.buf[:n:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) string(what string) string {
	return string(r.bytes(what))
}
