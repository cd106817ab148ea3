// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/crwiz-project/crwiz/lib/clock"
	"github.com/crwiz-project/crwiz/protocol"
)

// Sink receives replayed frames. *session.Synchronizer satisfies it.
type Sink interface {
	HandleFrame(frame protocol.Frame)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(frame protocol.Frame)

// HandleFrame calls f.
func (f SinkFunc) HandleFrame(frame protocol.Frame) { f(frame) }

// ReplayConfig configures Replay.
type ReplayConfig struct {
	// Clock paces delivery. Nil means the real clock.
	Clock clock.Clock

	// Speed scales recorded gaps: 2 replays twice as fast. Zero or
	// negative delivers every frame without waiting.
	Speed float64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Replay feeds the inbound entries to sink, spacing them by their
// recorded gaps. Outbound entries are skipped; the client under replay
// produces its own. It returns the number of frames delivered and
// ctx.Err() if ctx ends first.
func Replay(ctx context.Context, entries []Entry, sink Sink, config ReplayConfig) (int, error) {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	delivered := 0
	var last int64
	for _, entry := range entries {
		if entry.Direction != Inbound {
			continue
		}
		if delivered > 0 && config.Speed > 0 {
			if err := sleep(ctx, clk, scaleGap(entry.Time-last, config.Speed)); err != nil {
				return delivered, err
			}
		} else if err := ctx.Err(); err != nil {
			return delivered, err
		}
		last = entry.Time
		logger.Debug("replaying frame", "sequence", entry.Sequence, "event", entry.Event)
		sink.HandleFrame(entry.Frame())
		delivered++
	}
	return delivered, nil
}

func scaleGap(gap int64, speed float64) time.Duration {
	if gap <= 0 {
		return 0
	}
	return time.Duration(float64(gap) / speed)
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	fired := make(chan struct{})
	timer := clk.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}
