// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for every timer in the session
// client: the one-second task countdown, the delayed re-enable of the
// wizard's hint button, and journal timestamps.
//
// Components hold a Clock instead of calling time.AfterFunc or
// time.Now directly. Production wiring passes Real(); tests pass a
// FakeClock and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	timer := session.NewTaskTimer(fake, render, post)
//	timer.Set(90, true)
//	fake.Advance(3 * time.Second) // three ticks fire in order
//
// AfterFunc callbacks on a FakeClock run synchronously inside Advance,
// in deadline order, which makes countdown and debounce behaviour
// fully deterministic.
package clock
