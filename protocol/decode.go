// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnknownEvent is returned by [Decode] for event names outside the
// catalogue.
var ErrUnknownEvent = errors.New("protocol: unknown event")

// DecodeError reports a payload that does not fit its event's shape.
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decoding %s payload: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode converts an inbound event name and its JSON payload into the
// matching concrete type. An empty or null payload decodes as an empty
// object.
func Decode(name string, payload json.RawMessage) (Event, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = json.RawMessage("{}")
	}

	var (
		event Event
		err   error
	)
	switch name {
	case EventJoinedRoom:
		var v JoinedRoom
		err = json.Unmarshal(payload, &v)
		event = v
	case EventLeftRoom:
		event, err = decodeLeftRoom(payload)
	case EventStatus:
		var v Status
		err = json.Unmarshal(payload, &v)
		event = v
	case EventUpdateRoomProperties:
		event, err = decodeRoomProperties(payload)
	case EventUpdateUserPermissions:
		event = UserPermissionsUpdate{}
	case EventStatusUpdate:
		event, err = decodeStatusUpdate(payload)
	case EventDialogueChoices:
		var v DialogueChoices
		err = json.Unmarshal(payload, &v)
		event = v
	case EventPerformAction:
		var v PerformAction
		err = json.Unmarshal(payload, &v)
		event = v
	case EventDisableUserInput, EventEnableUserInput:
		var v InputToggle
		err = json.Unmarshal(payload, &v)
		v.Enabled = name == EventEnableUserInput
		event = v
	case EventTextMessage:
		var v ChatMessage
		err = json.Unmarshal(payload, &v)
		event = v
	case EventImageMessage:
		var v ImageMessage
		err = json.Unmarshal(payload, &v)
		event = v
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, name)
	}
	if err != nil {
		return nil, &DecodeError{Event: name, Err: err}
	}
	return event, nil
}

func decodeLeftRoom(payload json.RawMessage) (Event, error) {
	var room string
	if err := json.Unmarshal(payload, &room); err == nil {
		return LeftRoom{Room: room}, nil
	}
	var object struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(payload, &object); err != nil {
		return nil, err
	}
	return LeftRoom{Room: object.Room}, nil
}

func decodeRoomProperties(payload json.RawMessage) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	properties := RoomProperties{Fields: fields}
	if raw, ok := fields["read_only"]; ok {
		delete(fields, "read_only")
		if !isNull(raw) {
			var readOnly bool
			if err := json.Unmarshal(raw, &readOnly); err != nil {
				return nil, fmt.Errorf("read_only: %w", err)
			}
			properties.ReadOnly = &readOnly
		}
	}
	return properties, nil
}

func decodeStatusUpdate(payload json.RawMessage) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	var update StatusUpdate

	if raw, ok := take(fields, "remaining_seconds"); ok && !isNull(raw) {
		seconds, err := decodeWholeNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("remaining_seconds: %w", err)
		}
		update.RemainingSeconds = &seconds
	}
	if raw, ok := take(fields, "start_time"); ok {
		update.StartTime = raw
	}
	if raw, ok := take(fields, "running"); ok && !isNull(raw) {
		var running bool
		if err := json.Unmarshal(raw, &running); err != nil {
			return nil, fmt.Errorf("running: %w", err)
		}
		update.Running = &running
	}
	if raw, ok := take(fields, "user_turns"); ok && !isNull(raw) {
		var userTurns bool
		if err := json.Unmarshal(raw, &userTurns); err != nil {
			return nil, fmt.Errorf("user_turns: %w", err)
		}
		update.UserTurns = &userTurns
	}
	if raw, ok := take(fields, "turn_user_id"); ok && !isNull(raw) {
		id, err := decodeWholeNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("turn_user_id: %w", err)
		}
		update.TurnUserID = &id
	}
	if raw, ok := take(fields, "can_finish_task"); ok && !isNull(raw) {
		var canFinish bool
		if err := json.Unmarshal(raw, &canFinish); err != nil {
			return nil, fmt.Errorf("can_finish_task: %w", err)
		}
		update.CanFinishTask = &canFinish
	}
	if raw, ok := take(fields, "task_progress"); ok && !isNull(raw) {
		var progress float64
		if err := json.Unmarshal(raw, &progress); err != nil {
			return nil, fmt.Errorf("task_progress: %w", err)
		}
		update.TaskProgress = &progress
	}
	if raw, ok := take(fields, "users"); ok && !isNull(raw) {
		users, err := decodeRoster(raw)
		if err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
		update.Users = users
	}
	if raw, ok := take(fields, "operator_wait"); ok && !isNull(raw) {
		var wait OperatorWait
		if err := json.Unmarshal(raw, &wait); err != nil {
			return nil, fmt.Errorf("operator_wait: %w", err)
		}
		update.OperatorWait = &wait
	}
	update.Fields = fields
	return update, nil
}

// DecodeRoster parses an id → display name object whose keys are
// decimal user ids, as used by status_update.users and the room's
// current_users column.
func DecodeRoster(raw json.RawMessage) (map[int]string, error) {
	return decodeRoster(raw)
}

func decodeRoster(raw json.RawMessage) (map[int]string, error) {
	var byKey map[string]string
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, err
	}
	roster := make(map[int]string, len(byKey))
	for key, name := range byKey {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("user id %q: %w", key, err)
		}
		roster[id] = name
	}
	return roster, nil
}

// decodeWholeNumber accepts any JSON number and floors it. The server
// serializes some counters as floats (599.0, 42.7).
func decodeWholeNumber(raw json.RawMessage) (int, error) {
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, err
	}
	return int(math.Floor(number)), nil
}

func take(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if ok {
		delete(fields, key)
	}
	return raw, ok
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
