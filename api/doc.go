// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the request/response side of the chat server: a
// token-authenticated JSON client for the room, user, layout, history
// and permission resources, and for the wizard's dialogue endpoints.
//
// Every request carries "Authorization: Token <token>". Non-2xx
// responses become [*APIError]; [IsSessionInvalid] reports whether an
// error means the session is gone and the client must reload.
//
// Calls take a context but the client sets no deadline of its own. A
// hung request stalls only the flow waiting on it.
package api
