// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/crwiz-project/crwiz/lib/codec"
)

// Reader reads entries back and verifies their chain.
type Reader struct {
	file     io.Closer
	release  func()
	decoder  *codec.Decoder
	previous []byte
	next     uint64
}

// Open opens the journal file at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}
	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.file = file
	return reader, nil
}

// NewReader reads a journal from r, detecting its compression.
func NewReader(r io.Reader) (*Reader, error) {
	stream, release, err := newDecompressor(r)
	if err != nil {
		return nil, err
	}
	return &Reader{
		release: release,
		decoder: codec.NewDecoder(stream),
		next:    1,
	}, nil
}

// Next returns the next entry, or io.EOF after the last one. A digest
// or sequence mismatch returns an error wrapping ErrCorrupt.
func (r *Reader) Next() (Entry, error) {
	var entry Entry
	if err := r.decoder.Decode(&entry); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("journal: reading entry %d: %w", r.next, err)
	}
	if entry.Sequence != r.next {
		return Entry{}, fmt.Errorf("%w: expected entry %d, found %d", ErrCorrupt, r.next, entry.Sequence)
	}
	digest, err := chainDigest(r.previous, entry)
	if err != nil {
		return Entry{}, err
	}
	if !bytes.Equal(digest, entry.Digest) {
		return Entry{}, fmt.Errorf("%w: entry %d", ErrCorrupt, entry.Sequence)
	}
	r.previous = digest
	r.next++
	return entry, nil
}

// Close releases the decoder and closes the file if Open created it.
func (r *Reader) Close() error {
	r.release()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ReadFile reads every entry of the journal at path.
func ReadFile(path string) ([]Entry, error) {
	reader, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var entries []Entry
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}
