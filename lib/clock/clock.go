// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package the session client uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once, d from now. The returned Timer cancels
	// the call if it has not happened yet. A non-positive d runs f
	// immediately (in a new goroutine on the real clock, synchronously
	// on the fake one).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the pending call. It reports whether the call was
// still pending; false means it already ran or was stopped before.
// Stopping a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	return t.stopFunc()
}
