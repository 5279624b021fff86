// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package compression wraps the block compression libraries used for cached
// structure blobs behind a common Compressor / Decompressor pair.
package compression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/minio/minlz"
)

// Algorithm identifies a compression algorithm. The numeric values are stored
// in blob headers and must not change.
type Algorithm uint8

const (
	NoCompression Algorithm = iota
	Snappy
	MinLZ
	Zstd

	NumAlgorithms
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case NoCompression:
		return "NoCompression"
	case Snappy:
		return "Snappy"
	case MinLZ:
		return "MinLZ"
	case Zstd:
		return "ZSTD"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// Setting contains the information needed to compress a blob.
type Setting struct {
	Algorithm Algorithm
	// Level is only used for Zstd and MinLZ.
	Level uint8
}

// String implements fmt.Stringer.
func (s Setting) String() string {
	if s.Level == 0 {
		return s.Algorithm.String()
	}
	return fmt.Sprintf("%s%d", s.Algorithm, s.Level)
}

// Predefined settings.
var (
	None          = makeSetting(NoCompression, 0)
	SnappySetting = makeSetting(Snappy, 0)
	MinLZFastest  = makeSetting(MinLZ, minlz.LevelFastest)
	MinLZBalanced = makeSetting(MinLZ, minlz.LevelBalanced)
	ZstdLevel1    = makeSetting(Zstd, 1)
	ZstdLevel3    = makeSetting(Zstd, 3)
)

func makeSetting(algorithm Algorithm, level int) Setting {
	return Setting{Algorithm: algorithm, Level: uint8(level)}
}

// ParseSetting parses the names used in configuration files: "none",
// "snappy", "minlz", "minlz-balanced" and "zstd" with an optional level
// suffix, e.g. "zstd7".
func ParseSetting(s string) (Setting, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "none", "nocompression":
		return None, nil
	case "snappy":
		return SnappySetting, nil
	case "minlz", "minlz-fastest":
		return MinLZFastest, nil
	case "minlz-balanced":
		return MinLZBalanced, nil
	case "zstd":
		return ZstdLevel3, nil
	}
	if rest, ok := strings.CutPrefix(s, "zstd"); ok {
		level, err := strconv.Atoi(rest)
		if err == nil && level >= 1 && level <= 22 {
			return makeSetting(Zstd, level), nil
		}
	}
	return Setting{}, errors.Newf("unknown compression setting %q", s)
}

// Compressor is an interface for compressing data. An instance is associated
// with a specific Setting.
type Compressor interface {
	// Compress a block, appending the compressed data to dst[:0]. Returns the
	// setting that was actually used, which may differ from the requested one
	// when an algorithm cannot handle the input.
	Compress(dst, src []byte) ([]byte, Setting)

	// Close must be called when the Compressor is no longer needed.
	// After Close is called, the Compressor must not be used again.
	Close()
}

// GetCompressor returns a Compressor for s.
func GetCompressor(s Setting) Compressor {
	switch s.Algorithm {
	case NoCompression:
		return noopCompressor{}
	case Snappy:
		return snappyCompressor{}
	case MinLZ:
		return getMinlzCompressor(int(s.Level))
	case Zstd:
		return getZstdCompressor(int(s.Level))
	default:
		panic(errors.AssertionFailedf("invalid compression algorithm %d", s.Algorithm))
	}
}

// Decompressor is an interface for decompressing data. An instance is
// associated with a specific Algorithm.
type Decompressor interface {
	// DecompressInto decompresses compressed into buf. The buf slice must have
	// the exact size as the decompressed value. Callers may use
	// DecompressedLen to determine the correct size.
	DecompressInto(buf, compressed []byte) error

	// DecompressedLen returns the length of the provided block once
	// decompressed, allowing the caller to allocate a buffer exactly sized to
	// the decompressed payload.
	DecompressedLen(b []byte) (decompressedLen int, err error)

	// Close must be called when the Decompressor is no longer needed.
	// After Close is called, the Decompressor must not be used again.
	Close()
}

// GetDecompressor returns a Decompressor for a. Unknown algorithms return an
// error, since the algorithm comes from untrusted blob headers.
func GetDecompressor(a Algorithm) (Decompressor, error) {
	switch a {
	case NoCompression:
		return noopDecompressor{}, nil
	case Snappy:
		return snappyDecompressor{}, nil
	case MinLZ:
		return minlzDecompressor{}, nil
	case Zstd:
		return getZstdDecompressor(), nil
	default:
		return nil, errors.Newf("unknown compression algorithm %d", errors.Safe(a))
	}
}

// MaxDecompressedLen bounds the buffer Decompress allocates. Lengths are read
// from the compressed payload, so a corrupt payload must not be able to
// request an arbitrary allocation.
const MaxDecompressedLen = 1 << 30

// Decompress is a convenience wrapper that allocates a buffer of the right
// size and decompresses compressed into it.
func Decompress(a Algorithm, compressed []byte) ([]byte, error) {
	d, err := GetDecompressor(a)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	n, err := d.DecompressedLen(compressed)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > MaxDecompressedLen {
		return nil, errors.Newf("decompressed length %d out of range", n)
	}
	buf := make([]byte, n)
	if err := d.DecompressInto(buf, compressed); err != nil {
		return nil, err
	}
	return buf, nil
}
