// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport is the push channel between the client and the chat
// server: a websocket carrying one JSON [protocol.Frame] per text
// message.
//
// [Dial] opens the client side. [Conn.Run] reads frames and hands each
// one to a handler until the connection ends; [Conn.Emit] writes an
// outgoing event and may be called from any goroutine. A frame named
// "error" is the server reporting a channel-level failure and ends Run
// with a [*ServerError]. The server says "invalid session id" this way
// when the session it knew about is gone.
//
// [Accept] upgrades an HTTP request into the server side of the same
// channel. Tests and the replay tooling use it to stand in for the chat
// server.
package transport
