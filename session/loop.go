// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Loop runs tasks one at a time on a single goroutine. Everything that
// touches session state is a task: transport frames, user actions, timer
// callbacks, and the continuations of network round-trips.
//
// Work that blocks (HTTP calls) runs on helper goroutines started with
// [Loop.Go] or [Await] and posts its result back as a task. The loop
// counts queued tasks, the running task and outstanding helpers, so
// [Loop.WaitIdle] can tell when everything in flight has settled.
type Loop struct {
	logger *slog.Logger

	mu    sync.Mutex
	queue []func()
	// busy counts queued tasks, the running task and live helpers.
	busy int
	// idle is closed exactly while busy is zero.
	idle    chan struct{}
	stopped bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop. Tasks posted before Run are kept and run once
// Run starts.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	idle := make(chan struct{})
	close(idle)
	return &Loop{
		logger: logger,
		idle:   idle,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

// Post queues task. Posting to a stopped loop does nothing.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, task)
	l.markBusyLocked()
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on a helper goroutine and counts it as in flight until
// it returns. Work that needs session state must Post back.
func (l *Loop) Go(work func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.markBusyLocked()
	l.mu.Unlock()

	go func() {
		defer l.markDone()
		work()
	}()
}

// Await runs call on a helper goroutine and posts then with its result
// back onto the loop. Results are delivered in arrival order, not in
// the order the calls were made.
func Await[T any](l *Loop, call func() (T, error), then func(T, error)) {
	l.Go(func() {
		value, err := call()
		l.Post(func() { then(value, err) })
	})
}

// Run executes tasks until ctx is cancelled or Stop is called. It
// returns ctx.Err() on cancellation and nil after Stop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		default:
		}

		task, ok := l.next()
		if !ok {
			select {
			case <-l.wake:
			case <-ctx.Done():
				return ctx.Err()
			case <-l.stop:
				return nil
			}
			continue
		}
		l.runTask(task)
		l.markDone()
	}
}

// Stop ends Run and discards queued tasks. Helpers still running finish
// on their own; whatever they post afterwards is dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		if dropped := len(l.queue); dropped > 0 {
			l.queue = nil
			l.busy -= dropped
			if l.busy == 0 {
				close(l.idle)
			}
		}
		l.mu.Unlock()
		close(l.stop)
	})
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// WaitIdle blocks until no task is queued or running and no helper is
// in flight, or the loop is stopped. A helper blocked forever (a hung
// request) keeps WaitIdle waiting until ctx ends.
func (l *Loop) WaitIdle(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.stopped || l.busy == 0 {
			l.mu.Unlock()
			return nil
		}
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-idle:
		case <-l.stop:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// runTask runs one task. A panicking task is logged and the loop keeps
// going.
func (l *Loop) runTask(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			l.logger.Error("session task panicked", "panic", fmt.Sprint(recovered))
		}
	}()
	task()
}

func (l *Loop) markBusyLocked() {
	if l.busy == 0 {
		l.idle = make(chan struct{})
	}
	l.busy++
}

func (l *Loop) markDone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.busy--
	if l.busy == 0 {
		close(l.idle)
	}
}
