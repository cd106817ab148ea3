// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a journal file is compressed.
type Compression uint8

const (
	// CompressionZstd compresses with zstd at the default level.
	CompressionZstd Compression = iota
	// CompressionLZ4 uses the lz4 frame format; faster, larger files.
	CompressionLZ4
	// CompressionNone writes the CBOR sequence as is.
	CompressionNone
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// String returns the name accepted by ParseCompression.
func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("journal: unknown compression %q (expected zstd, lz4 or none)", name)
	}
}

// flushWriteCloser is a compressing writer that can push buffered data
// out after every entry.
type flushWriteCloser interface {
	io.WriteCloser
	Flush() error
}

// nopFlusher adapts an uncompressed file.
type nopFlusher struct{ io.Writer }

func (nopFlusher) Flush() error { return nil }
func (nopFlusher) Close() error { return nil }

func newCompressor(w io.Writer, compression Compression) (flushWriteCloser, error) {
	switch compression {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("journal: zstd writer: %w", err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionNone:
		return nopFlusher{w}, nil
	default:
		return nil, fmt.Errorf("journal: unsupported compression %s", compression)
	}
}

// newDecompressor sniffs the stream's magic bytes and returns a reader
// yielding the CBOR sequence. The returned close function releases
// decoder resources.
func newDecompressor(r io.Reader) (io.Reader, func(), error) {
	buffered := bufio.NewReader(r)
	magic, err := buffered.Peek(4)
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("journal: reading header: %w", err)
	}
	switch {
	case bytes.Equal(magic, zstdMagic):
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, nil, fmt.Errorf("journal: zstd reader: %w", err)
		}
		return decoder, decoder.Close, nil
	case bytes.Equal(magic, lz4Magic):
		return lz4.NewReader(buffered), func() {}, nil
	default:
		return buffered, func() {}, nil
	}
}
