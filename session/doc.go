// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package session is the client side of a collaborative chat task:
// the local view of the room, who may type when, and the wizard's
// dialogue options.
//
// The [Synchronizer] is the only writer of [State]. Push events from the
// transport ([Synchronizer.HandleFrame]), user actions
// ([Synchronizer.SubmitText], [Synchronizer.SelectOption], ...) and
// timer callbacks all become tasks on a single-goroutine [Loop] and are
// applied in arrival order. REST round-trips run on helper goroutines
// and post their continuation back onto the loop, so no handler ever
// observes state mid-update.
//
// A joined_room push starts hydration: room, user, layout and history
// are requested together and applied in that order, then the token's
// permissions. Until the user is known every other push is dropped.
// [Synchronizer.Hydrated] closes when the first hydration completes.
//
// Composition is gated by the Turn Controller ([ComposeAllowed]): input
// enabled, room open, and either turn taking off or the local user
// holding the turn. Wizards compose by picking options from the
// [DialogueEngine]; everyone else types. Confirm/cancel dialogs
// (perform_action and finish-task) go through the [Handshake], which
// fires exactly one callback per dialog.
//
// What to draw is pushed to a [Presenter]. If the server rejects the
// session, the presenter is told to reload and [Synchronizer.Run]
// returns an error wrapping [ErrSessionInvalid].
package session
