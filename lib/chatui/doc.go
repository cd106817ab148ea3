// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the terminal front end of a session. Built on
// bubbletea (Elm architecture), it renders the chat log, the compose
// line, the wizard's option list and the confirmation dialog.
//
// The session drives it through [Presenter], which implements
// session.Presenter by turning every call into a bubbletea message, so
// rendering state is only ever touched by the program's own goroutine.
// Keystrokes go the other way: the [Model] calls [Actions] (satisfied
// by *session.Synchronizer) and waits for the session to render the
// outcome. The model never decides on its own whether input is
// allowed; it shows what the session last told it.
//
// [LogHandler] routes slog records into the status line so log output
// does not tear the alternate screen.
package chatui
