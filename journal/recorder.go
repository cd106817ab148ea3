// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/crwiz-project/crwiz/lib/clock"
	"github.com/crwiz-project/crwiz/lib/codec"
	"github.com/crwiz-project/crwiz/protocol"
)

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Compression defaults to zstd.
	Compression Compression

	// Clock stamps entries. Nil means the real clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Recorder appends entries to a journal. It is safe for concurrent
// use; entries are numbered and chained in the order Record is called.
type Recorder struct {
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	file       io.Closer
	compressor flushWriteCloser
	encoder    *codec.Encoder
	sequence   uint64
	previous   []byte
	closed     bool
}

// Create creates (or truncates) the journal file at path.
func Create(path string, config RecorderConfig) (*Recorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: creating %s: %w", path, err)
	}
	recorder, err := NewRecorder(file, config)
	if err != nil {
		file.Close()
		return nil, err
	}
	recorder.file = file
	return recorder, nil
}

// NewRecorder writes a journal to w. Closing the recorder does not
// close w.
func NewRecorder(w io.Writer, config RecorderConfig) (*Recorder, error) {
	compressor, err := newCompressor(w, config.Compression)
	if err != nil {
		return nil, err
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		clock:      clk,
		logger:     logger,
		compressor: compressor,
		encoder:    codec.NewEncoder(compressor),
	}, nil
}

// Record appends one frame and flushes it, so a crash loses at most
// the entry being written.
func (r *Recorder) Record(direction Direction, frame protocol.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("journal: recorder closed")
	}

	r.sequence++
	entry := Entry{
		Sequence:  r.sequence,
		Time:      r.clock.Now().UnixNano(),
		Direction: direction,
		Event:     frame.Event,
		Data:      []byte(frame.Data),
	}
	digest, err := chainDigest(r.previous, entry)
	if err != nil {
		return err
	}
	entry.Digest = digest

	if err := r.encoder.Encode(entry); err != nil {
		return fmt.Errorf("journal: writing entry %d: %w", entry.Sequence, err)
	}
	if err := r.compressor.Flush(); err != nil {
		return fmt.Errorf("journal: flushing entry %d: %w", entry.Sequence, err)
	}
	r.previous = digest
	return nil
}

// Handler wraps a frame handler so every inbound frame is recorded
// before it is handled. Recording failures are logged; the frame is
// still handled.
func (r *Recorder) Handler(next func(protocol.Frame)) func(protocol.Frame) {
	return func(frame protocol.Frame) {
		if err := r.Record(Inbound, frame); err != nil {
			r.logger.Warn("journal record failed", "event", frame.Event, "error", err)
		}
		next(frame)
	}
}

// Len returns the number of entries recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.sequence)
}

// Close finishes the compressed stream and closes the file if the
// recorder created it.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.compressor.Close()
	if r.file != nil {
		if closeErr := r.file.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		return fmt.Errorf("journal: closing: %w", err)
	}
	return nil
}

// FrameWriter is the outbound half of a transport connection.
type FrameWriter interface {
	WriteFrame(frame protocol.Frame) error
}

// RecordingEmitter encodes outgoing events, records them and writes
// them to the connection. It satisfies the session's Emitter.
type RecordingEmitter struct {
	Recorder *Recorder
	Conn     FrameWriter
}

// Emit encodes event, records it and sends it. A recording failure is
// logged and the event is still sent.
func (e RecordingEmitter) Emit(event protocol.Event) error {
	frame, err := protocol.Encode(event)
	if err != nil {
		return err
	}
	if err := e.Recorder.Record(Outbound, frame); err != nil {
		e.Recorder.logger.Warn("journal record failed", "event", frame.Event, "error", err)
	}
	return e.Conn.WriteFrame(frame)
}
