// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/crwiz-project/crwiz/lib/codec"
	"github.com/crwiz-project/crwiz/protocol"
)

// Direction says which way a frame travelled.
type Direction string

const (
	// Inbound frames came from the server.
	Inbound Direction = "in"
	// Outbound frames were sent by the client.
	Outbound Direction = "out"
)

// DigestSize is the length of an entry's chain digest.
const DigestSize = 32

// ErrCorrupt is returned when an entry's digest does not match.
var ErrCorrupt = errors.New("journal: digest mismatch")

// Entry is one recorded frame.
type Entry struct {
	Sequence  uint64    `cbor:"seq"`
	Time      int64     `cbor:"time_ns"`
	Direction Direction `cbor:"dir"`
	Event     string    `cbor:"event"`
	// Data is the frame's JSON payload.
	Data []byte `cbor:"data,omitempty"`
	// Digest chains this entry to the previous one.
	Digest []byte `cbor:"digest"`
}

// At returns the time the entry was recorded.
func (e Entry) At() time.Time {
	return time.Unix(0, e.Time)
}

// Frame returns the entry as a transport frame.
func (e Entry) Frame() protocol.Frame {
	return protocol.Frame{Event: e.Event, Data: json.RawMessage(e.Data)}
}

// digestable is the part of an entry the digest covers.
type digestable struct {
	Sequence  uint64    `cbor:"seq"`
	Time      int64     `cbor:"time_ns"`
	Direction Direction `cbor:"dir"`
	Event     string    `cbor:"event"`
	Data      []byte    `cbor:"data,omitempty"`
}

// chainDigest computes BLAKE3(previous || CBOR(entry without digest)).
func chainDigest(previous []byte, entry Entry) ([]byte, error) {
	content, err := codec.Marshal(digestable{
		Sequence:  entry.Sequence,
		Time:      entry.Time,
		Direction: entry.Direction,
		Event:     entry.Event,
		Data:      entry.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: encoding entry %d: %w", entry.Sequence, err)
	}
	hasher := blake3.New()
	hasher.Write(previous)
	hasher.Write(content)
	return hasher.Sum(nil), nil
}
