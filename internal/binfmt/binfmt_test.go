// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package binfmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatter(t *testing.T) {
	f := New([]byte{0x03, 'a', 'b', 'c', 0xff})
	require.Equal(t, []byte("abc"), f.LengthPrefixed(true, "name"))
	require.Equal(t, 1, f.HexBytesln(1, "flag"))
	require.False(t, f.More())
	require.Equal(t, "0-1: x 03     # uvarint(3): name length\n"+
		"1-4: x 616263 # abc\n"+
		"4-5: x ff     # flag\n", f.String())
}

func TestFormatterTruncated(t *testing.T) {
	f := New([]byte{0xaa})
	require.Equal(t, 1, f.HexBytesln(3, "c"))
	require.Equal(t, "0-1: x aa # c\n# truncated\n", f.String())

	f = New([]byte{0x05, 'a'})
	require.Equal(t, []byte("a"), f.LengthPrefixed(true, "s"))
	require.Equal(t, "0-1: x 05 # uvarint(5): s length\n1-2: x 61 # a\n", f.String())
}

func TestFormatterLinePrefix(t *testing.T) {
	f := New([]byte{0x01})
	f.SetLinePrefix("  ")
	f.Comment("header")
	require.Equal(t, uint64(1), f.Uvarint("count"))
	require.Equal(t, "  # header\n  0-1: x 01 # uvarint(1): count\n", f.String())
}

func TestHexDump(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5}
	require.Equal(t, " 00010203 | ....\n 0405     | ..\n", HexDump(data, 4, false))
	require.Equal(t, "00:  00010203 | ....\n04:  0405     | ..\n", HexDump(data, 4, true))
	require.Equal(t, " 6869 | hi\n", HexDump([]byte("hi"), 2, false))
}
