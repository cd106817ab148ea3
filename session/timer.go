// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"time"

	"github.com/crwiz-project/crwiz/lib/clock"
)

// tickInterval is the local countdown step.
const tickInterval = time.Second

// TaskTimer is the task countdown. The server sends a baseline with
// each status push; between pushes the timer ticks down locally once a
// second. All methods run on the loop goroutine.
type TaskTimer struct {
	clock  clock.Clock
	post   func(func())
	render func(string)

	remaining int
	running   bool

	// generation invalidates ticks scheduled before the latest Set.
	generation uint64
	tick       *clock.Timer
}

// NewTaskTimer creates a stopped timer. Ticks are delivered through
// post, which must run the function on the loop goroutine; render
// receives the formatted countdown.
func NewTaskTimer(clk clock.Clock, post func(func()), render func(string)) *TaskTimer {
	return &TaskTimer{clock: clk, post: post, render: render}
}

// Set replaces the baseline outright and restarts the tick. A negative
// baseline leaves the timer inert until the next Set.
func (t *TaskTimer) Set(remainingSeconds int, running bool) {
	t.Stop()
	t.remaining = remainingSeconds
	t.running = running
	if t.remaining < 0 {
		t.running = false
		return
	}
	t.render(FormatRemaining(t.remaining))
	if t.running {
		t.schedule(t.generation)
	}
}

// Stop cancels the tick. The remaining value is kept.
func (t *TaskTimer) Stop() {
	t.generation++
	t.tick.Stop()
	t.tick = nil
}

// Remaining returns the current countdown value and whether it is
// ticking.
func (t *TaskTimer) Remaining() (int, bool) {
	return t.remaining, t.tick != nil
}

func (t *TaskTimer) schedule(generation uint64) {
	t.tick = t.clock.AfterFunc(tickInterval, func() {
		t.post(func() { t.onTick(generation) })
	})
}

func (t *TaskTimer) onTick(generation uint64) {
	if generation != t.generation {
		return
	}
	t.remaining--
	if t.remaining < 0 {
		t.running = false
		t.tick = nil
		return
	}
	t.render(FormatRemaining(t.remaining))
	t.schedule(generation)
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
