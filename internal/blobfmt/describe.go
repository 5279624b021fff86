// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobfmt

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/blockcache/internal/binfmt"
	"github.com/cockroachdb/blockcache/internal/compression"
)

// Describe returns an annotated rendering of the envelope and the decompressed
// payload of a blob. Corrupt blobs are described up to the first problem.
func Describe(data []byte) string {
	var buf strings.Builder
	f := binfmt.New(data[:min(len(data), headerLen)]).LineWidth(32)
	f.Comment("envelope")
	f.HexBytesln(len(magic), "magic")
	f.HexBytesln(1, "format version")
	f.HexBytesln(1, "compression algorithm")
	f.HexBytesln(8, "checksum")
	buf.WriteString(f.String())

	h, compressed, err := ReadHeader(data)
	if err != nil {
		fmt.Fprintf(&buf, "# %v\n", err)
		return buf.String()
	}
	payload, err := compression.Decompress(h.Algorithm, compressed)
	if err != nil {
		fmt.Fprintf(&buf, "# decompressing payload: %v\n", err)
		return buf.String()
	}
	fmt.Fprintf(&buf, "# payload: %d bytes compressed with %s, %d bytes uncompressed\n",
		len(compressed), h.Algorithm, len(payload))

	p := binfmt.New(payload).LineWidth(32)
	p.SetLinePrefix("  ")
	n := p.Uvarint("key count")
	for i := uint64(0); i < n && p.More(); i++ {
		p.LengthPrefixed(true, "key %d course", i)
		p.LengthPrefixed(true, "key %d type", i)
		p.LengthPrefixed(true, "key %d id", i)
	}
	p.Uvarint("root index")
	for i := uint64(0); i < n && p.More(); i++ {
		describeIndexes(p, "key %d children", i)
		describeIndexes(p, "key %d parents", i)
	}
	nt := p.Uvarint("transformer count")
	for i := uint64(0); i < nt && p.More(); i++ {
		name := p.LengthPrefixed(true, "transformer name")
		p.Uvarint("%s version", name)
		p.LengthPrefixed(false, "%s data", name)
		nf := p.Uvarint("%s field count", name)
		for j := uint64(0); j < nf && p.More(); j++ {
			field := p.LengthPrefixed(true, "field name")
			p.LengthPrefixed(false, "%s.%s values", name, field)
		}
	}
	if p.More() {
		p.HexBytesln(p.Remaining(), "trailing bytes")
	}
	buf.WriteString(p.String())
	return buf.String()
}

func describeIndexes(p *binfmt.Formatter, format string, i uint64) {
	what := fmt.Sprintf(format, i)
	c := p.Uvarint("%s", what)
	for j := uint64(0); j < c && p.More(); j++ {
		p.Uvarint("%s[%d]", what, j)
	}
}
