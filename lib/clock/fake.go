// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time only moves when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use. Callbacks run on the goroutine calling Advance and
// must not call Advance themselves.
type FakeClock struct {
	mu       sync.Mutex
	current  time.Time
	pending  []*fakeCall
	sequence uint64
	changed  *sync.Cond
}

type fakeCall struct {
	deadline time.Time
	// sequence breaks deadline ties in registration order.
	sequence uint64
	callback func()
	done     bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run when the clock is advanced d past the
// current fake time.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	c.sequence++
	call := &fakeCall{
		deadline: c.current.Add(d),
		sequence: c.sequence,
		callback: f,
	}
	c.pending = append(c.pending, call)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if call.done {
				return false
			}
			call.done = true
			return true
		},
	}
}

// Advance moves the clock forward by d and runs every callback whose
// deadline is now due, earliest first. Callbacks registered by a
// callback during the same Advance also run if they fall due within
// the advanced window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		call := c.nextDue(target)
		if call == nil {
			break
		}
		call.callback()
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// nextDue pops the earliest live call due at or before target and
// moves the clock to its deadline, so callbacks observe Now() equal
// to the time they were scheduled for.
func (c *FakeClock) nextDue(target time.Time) *fakeCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.pending[:0]
	for _, call := range c.pending {
		if !call.done {
			live = append(live, call)
		}
	}
	c.pending = live

	sort.Slice(c.pending, func(i, j int) bool {
		if c.pending[i].deadline.Equal(c.pending[j].deadline) {
			return c.pending[i].sequence < c.pending[j].sequence
		}
		return c.pending[i].deadline.Before(c.pending[j].deadline)
	})

	if len(c.pending) == 0 || c.pending[0].deadline.After(target) {
		return nil
	}
	call := c.pending[0]
	call.done = true
	c.pending = c.pending[1:]
	if call.deadline.After(c.current) {
		c.current = call.deadline
	}
	return call
}

// PendingCount returns the number of callbacks still waiting to run.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// WaitForTimers blocks until at least n callbacks are pending. Use it
// when the timer is registered from another goroutine (for example a
// continuation running on the session loop).
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, call := range c.pending {
		if !call.done {
			count++
		}
	}
	return count
}
