// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is one message on the push channel: an event name and its
// JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps an outgoing event in a frame.
func Encode(event Event) (Frame, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Frame{}, fmt.Errorf("protocol: encoding %s: %w", event.EventName(), err)
	}
	return Frame{Event: event.EventName(), Data: data}, nil
}

// Decode decodes the frame's payload. See the package-level [Decode].
func (f Frame) Decode() (Event, error) {
	return Decode(f.Event, f.Data)
}
