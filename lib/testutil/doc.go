// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds bounded channel helpers for tests.
//
// [RequireReceive], [RequireSend], [RequireClosed] and
// [RequireNoReceive] wrap the select-with-deadline pattern so tests
// never block forever on a channel. They are the only place tests wait
// on the wall clock; everything driven by timers inside the client uses
// clock.Fake instead.
//
// Helpers call t.Fatalf on failure.
package testutil
