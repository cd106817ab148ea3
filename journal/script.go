// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
)

// Script is a hand-written sequence of inbound events, authored as
// JSONC (JSON with comments and trailing commas):
//
//	{
//	  "events": [
//	    // the server confirms the join first
//	    {"event": "joined_room", "data": {"room": "wizard_task_1", "user": 1}},
//	    {"delay": "2s", "event": "status_update", "data": {"turn_user_id": 1}},
//	  ],
//	}
type Script struct {
	Events []ScriptEvent `json:"events"`
}

// ScriptEvent is one scripted frame. Delay is a Go duration string
// measured from the previous event.
type ScriptEvent struct {
	Delay string          `json:"delay,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParseScript strips JSONC comments and trailing commas from data and
// unmarshals the result.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	if err := json.Unmarshal(jsonc.ToJSON(data), &script); err != nil {
		return nil, fmt.Errorf("journal: parsing script: %w", err)
	}
	for index, event := range script.Events {
		if event.Event == "" {
			return nil, fmt.Errorf("journal: script event %d: missing event name", index)
		}
		if event.Delay != "" {
			delay, err := time.ParseDuration(event.Delay)
			if err != nil {
				return nil, fmt.Errorf("journal: script event %d: delay: %w", index, err)
			}
			if delay < 0 {
				return nil, fmt.Errorf("journal: script event %d: negative delay %s", index, event.Delay)
			}
		}
	}
	return &script, nil
}

// LoadScript reads and parses the script file at path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("journal: reading %s: %w", path, err)
	}
	script, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return script, nil
}

// Entries converts the script into chained inbound entries stamped
// from start. Delays were validated by ParseScript.
func (s *Script) Entries(start time.Time) ([]Entry, error) {
	entries := make([]Entry, 0, len(s.Events))
	at := start
	var previous []byte
	for index, event := range s.Events {
		if event.Delay != "" {
			delay, _ := time.ParseDuration(event.Delay)
			at = at.Add(delay)
		}
		entry := Entry{
			Sequence:  uint64(index + 1),
			Time:      at.UnixNano(),
			Direction: Inbound,
			Event:     event.Event,
			Data:      []byte(event.Data),
		}
		digest, err := chainDigest(previous, entry)
		if err != nil {
			return nil, err
		}
		entry.Digest = digest
		previous = digest
		entries = append(entries, entry)
	}
	return entries, nil
}
