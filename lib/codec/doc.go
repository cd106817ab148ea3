// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the client's CBOR configuration.
//
// JSON is the wire format for everything the server sees (push frames
// and REST bodies). CBOR is used only for what the client writes for
// itself: the event journal, where each captured push frame becomes one
// item of a CBOR sequence. Encoding uses Core Deterministic Encoding
// (RFC 8949 §4.2) so the same journal entry always produces the same
// bytes, which keeps recordings diffable.
//
//	encoder := codec.NewEncoder(file)
//	err := encoder.Encode(entry)
//
//	decoder := codec.NewDecoder(file)
//	err = decoder.Decode(&entry) // io.EOF at the end of the sequence
package codec
