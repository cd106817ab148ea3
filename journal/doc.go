// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records the frames a session exchanges with the chat
// server and plays them back.
//
// A journal file is a compressed CBOR sequence of [Entry] values, one
// per frame, in the order the client saw them. Compression is zstd by
// default or lz4 ([Compression]); [Open] detects it from the file's
// magic bytes. Every entry carries a BLAKE3 chain digest over its own
// content and the previous entry's digest, so a truncated, reordered or
// edited journal is reported by the [Reader] instead of being replayed
// silently.
//
// Journals are written by a [Recorder], usually through
// [Recorder.Handler] for inbound frames and [RecordingEmitter] for
// outbound ones. Hand-written scenarios use the JSONC [Script] format.
// [Replay] feeds the inbound entries of either to a [Sink] such as a
// session, paced by their recorded timing.
package journal
