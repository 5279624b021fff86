// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build !cgo

package compression

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// UseStandardZstdLib indicates whether the zstd implementation is a port of the
// official one in the facebook/zstd repository.
//
// This constant is only used in tests, which must not depend on the exact
// compressed bytes when it is false.
const UseStandardZstdLib = false

type zstdCompressor struct {
	level int
	enc   *zstd.Encoder
}

var _ Compressor = (*zstdCompressor)(nil)

// zstd.Encoder.EncodeAll is safe for concurrent use, so one encoder per level
// is shared by every compressor.
var zstdEncoders struct {
	sync.Mutex
	byLevel map[int]*zstd.Encoder
}

func getZstdCompressor(level int) *zstdCompressor {
	zstdEncoders.Lock()
	defer zstdEncoders.Unlock()
	enc, ok := zstdEncoders.byLevel[level]
	if !ok {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			panic(errors.Wrap(err, "zstd encoder"))
		}
		if zstdEncoders.byLevel == nil {
			zstdEncoders.byLevel = make(map[int]*zstd.Encoder)
		}
		zstdEncoders.byLevel[level] = enc
	}
	return &zstdCompressor{level: level, enc: enc}
}

func (z *zstdCompressor) Compress(compressedBuf, b []byte) ([]byte, Setting) {
	compressedBuf = compressedBuf[:0]
	compressedBuf = binary.AppendUvarint(compressedBuf, uint64(len(b)))
	return z.enc.EncodeAll(b, compressedBuf), makeSetting(Zstd, z.level)
}

func (z *zstdCompressor) Close() {}

type zstdDecompressor struct{}

var _ Decompressor = zstdDecompressor{}

var zstdDecoder = sync.OnceValue(func() *zstd.Decoder {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(errors.Wrap(err, "zstd decoder"))
	}
	return d
})

func (zstdDecompressor) DecompressInto(dst, src []byte) error {
	// The payload is prefixed with a varint encoding the length of
	// the decompressed block.
	_, prefixLen := binary.Uvarint(src)
	if prefixLen <= 0 {
		return errors.New("zstd: invalid length prefix")
	}
	result, err := zstdDecoder().DecodeAll(src[prefixLen:], dst[:0])
	if err != nil {
		return err
	}
	if len(result) != len(dst) || (len(result) > 0 && &result[0] != &dst[0]) {
		return errors.Newf("zstd: decompressed into unexpected buffer: %d != %d bytes",
			len(result), len(dst))
	}
	return nil
}

func (zstdDecompressor) DecompressedLen(b []byte) (decompressedLen int, err error) {
	decodedLenU64, varIntLen := binary.Uvarint(b)
	if varIntLen <= 0 {
		return 0, errors.New("zstd: invalid length prefix")
	}
	return int(decodedLenU64), nil
}

func (zstdDecompressor) Close() {}

func getZstdDecompressor() zstdDecompressor {
	return zstdDecompressor{}
}
