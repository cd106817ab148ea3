// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol is the catalogue of push-channel events exchanged
// with the chat server, and the wire shapes shared with the REST API.
//
// Every inbound frame names an event and carries a JSON payload.
// [Decode] turns a (name, payload) pair into one concrete Go type per
// event ([JoinedRoom], [StatusUpdate], [PerformAction], ...), so the
// session layer switches on types instead of probing payloads for the
// presence of keys. Unknown event names produce [ErrUnknownEvent];
// payloads that do not fit their event's shape produce a
// [*DecodeError]. Callers log both and move on.
//
// Outgoing events are plain structs ([Ready], [UserFinishTask], [Text])
// that implement [Event] like the inbound ones; [Encode] wraps any of
// them in a [Frame] for the transport.
//
// Several payloads are open-ended: status_update carries arbitrary
// scalar display fields next to the known ones, and
// update_room_properties may set any room column. Those types keep the
// unknown remainder in a Fields map of raw JSON values.
package protocol
