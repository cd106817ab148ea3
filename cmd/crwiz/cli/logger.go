// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// LoggerOptions configures [NewCommandLogger].
type LoggerOptions struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format is auto, text or json. Auto (or empty) picks text when
	// Writer is a terminal and JSON otherwise.
	Format string

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// NewCommandLogger creates the structured logger commands use. On a
// terminal it writes human-readable text; piped or redirected it
// writes JSON. An unknown level or format falls back to the default.
func NewCommandLogger(options LoggerOptions) *slog.Logger {
	handler, err := NewLogHandler(options)
	if err != nil {
		handler, _ = NewLogHandler(LoggerOptions{Writer: options.Writer})
	}
	return slog.New(handler)
}

// NewLogHandler builds the handler behind [NewCommandLogger] and
// reports a bad level or format.
func NewLogHandler(options LoggerOptions) (slog.Handler, error) {
	writer := options.Writer
	if writer == nil {
		writer = os.Stderr
	}
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	handlerOptions := &slog.HandlerOptions{Level: level}

	switch options.Format {
	case "text":
		return slog.NewTextHandler(writer, handlerOptions), nil
	case "json":
		return slog.NewJSONHandler(writer, handlerOptions), nil
	case "", "auto":
		if isTerminal(writer) {
			return slog.NewTextHandler(writer, handlerOptions), nil
		}
		return slog.NewJSONHandler(writer, handlerOptions), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", options.Format)
	}
}

// ParseLevel parses a level name. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// TeeHandler sends each record to every handler that accepts its
// level. connect uses it to log to the status line and to a file at
// the same time.
type TeeHandler []slog.Handler

// Enabled reports whether any handler accepts level.
func (t TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range t {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of record to each accepting handler and joins
// their errors.
func (t TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range t {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make(TeeHandler, len(t))
	for i, handler := range t {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return handlers
}

func (t TeeHandler) WithGroup(name string) slog.Handler {
	handlers := make(TeeHandler, len(t))
	for i, handler := range t {
		handlers[i] = handler.WithGroup(name)
	}
	return handlers
}
