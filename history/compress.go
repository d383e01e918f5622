// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encodings of a cached favicon's data column.
const (
	encodingNone = "none"
	encodingZstd = "zstd"
)

// Shared across calls; zstd.Encoder and zstd.Decoder are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("history: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("history: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns the form data is cached in. Icons that do not shrink
// (most PNG and ICO files) are kept as-is.
func compress(data []byte) ([]byte, string) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return data, encodingNone
	}
	return compressed, encodingZstd
}

func decompress(data []byte, encoding string, size int) ([]byte, error) {
	switch encoding {
	case encodingNone:
		if len(data) != size {
			return nil, fmt.Errorf("cached icon: size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case encodingZstd:
		result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("cached icon: unknown encoding %q", encoding)
	}
}
