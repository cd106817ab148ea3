// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "encoding/json"

// Event is any push-channel payload with a known event name.
type Event interface {
	EventName() string
}

// Inbound event names.
const (
	EventJoinedRoom            = "joined_room"
	EventLeftRoom              = "left_room"
	EventStatus                = "status"
	EventUpdateRoomProperties  = "update_room_properties"
	EventUpdateUserPermissions = "update_user_permissions"
	EventStatusUpdate          = "status_update"
	EventDialogueChoices       = "dialogue_choices"
	EventPerformAction         = "perform_action"
	EventDisableUserInput      = "disable_user_input"
	EventEnableUserInput       = "enable_user_input"
	EventTextMessage           = "text_message"
	EventImageMessage          = "image_message"
)

// Outgoing event names.
const (
	EventReady          = "ready"
	EventUserFinishTask = "user_finish_task"
	EventText           = "text"
)

// UserRef identifies a room occupant.
type UserRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// JoinedRoom is sent to this client (in answer to ready) for every room
// it currently occupies. It triggers hydration.
type JoinedRoom struct {
	Room string `json:"room"`
	User int    `json:"user"`
}

func (JoinedRoom) EventName() string { return EventJoinedRoom }

// LeftRoom is sent when this client's connection leaves a room. The
// server sends the bare room name as the payload.
type LeftRoom struct {
	Room string
}

func (LeftRoom) EventName() string { return EventLeftRoom }

// Presence change kinds carried by [Status].
const (
	StatusJoin  = "join"
	StatusLeave = "leave"
)

// Status announces another occupant joining or leaving the room.
type Status struct {
	Type      string  `json:"type"`
	User      UserRef `json:"user"`
	Room      string  `json:"room"`
	Timestamp int64   `json:"timestamp"`
}

func (Status) EventName() string { return EventStatus }

// RoomProperties carries changed room columns. ReadOnly is nil when the
// update does not touch the read-only flag; every other column lands in
// Fields.
type RoomProperties struct {
	ReadOnly *bool
	Fields   map[string]json.RawMessage
}

func (RoomProperties) EventName() string { return EventUpdateRoomProperties }

// UserPermissionsUpdate tells the client its token's permissions
// changed. The payload content is not trusted; the client refetches.
type UserPermissionsUpdate struct{}

func (UserPermissionsUpdate) EventName() string { return EventUpdateUserPermissions }

// OperatorWait blocks non-wizard composition until the wizard starts
// the conversation.
type OperatorWait struct {
	UserID int    `json:"user_id"`
	Reason string `json:"reason"`
}

// StatusUpdate is the periodic task status broadcast. Pointer fields
// are nil when the key is absent from the payload. Keys not listed here
// are kept in Fields for projection into display slots.
type StatusUpdate struct {
	RemainingSeconds *int
	// StartTime is the raw start_time value; JSON null (task not yet
	// started) is preserved so TimerRunning can tell absent from null.
	StartTime     json.RawMessage
	Running       *bool
	UserTurns     *bool
	TurnUserID    *int
	CanFinishTask *bool
	TaskProgress  *float64
	Users         map[int]string
	OperatorWait  *OperatorWait
	Fields        map[string]json.RawMessage
}

func (StatusUpdate) EventName() string { return EventStatusUpdate }

// TimerRunning reports whether the countdown should tick locally. An
// explicit running flag wins; otherwise a non-null start_time means the
// task has started.
func (s StatusUpdate) TimerRunning() bool {
	if s.Running != nil {
		return *s.Running
	}
	return len(s.StartTime) > 0 && string(s.StartTime) != "null"
}

// ChoiceElement is one dialogue option offered to the wizard.
type ChoiceElement struct {
	Utterance   string `json:"utterance"`
	StateName   string `json:"state_name"`
	UtteranceID string `json:"utterance_id,omitempty"`
}

// ChoiceSelection is the wizard's current option set.
type ChoiceSelection struct {
	AllowFreeText        bool            `json:"allow_free_text"`
	ShowStaticUtterances *bool           `json:"show_static_utterances,omitempty"`
	Elements             []ChoiceElement `json:"elements"`
}

// ShowStatic reports whether the static general options stay visible.
// Absent means visible.
func (c ChoiceSelection) ShowStatic() bool {
	return c.ShowStaticUtterances == nil || *c.ShowStaticUtterances
}

// DialogueChoices is both the dialogue_choices push payload and the
// response body of get_wizard_dialogue_choices. ChoiceSelection is nil
// when the server has nothing to offer (for example after the task
// finished, in which case Reason explains why).
type DialogueChoices struct {
	RoomName        string           `json:"room_name,omitempty"`
	ChoiceSelection *ChoiceSelection `json:"choice_selection,omitempty"`
	Reason          string           `json:"reason,omitempty"`
}

func (DialogueChoices) EventName() string { return EventDialogueChoices }

// FrontendCallback describes what the client does after the wizard
// answers a perform_action prompt. OnResult applies to both answers and
// is merged under the answer-specific branch.
type FrontendCallback struct {
	OnConfirm map[string]json.RawMessage `json:"on_confirm,omitempty"`
	OnCancel  map[string]json.RawMessage `json:"on_cancel,omitempty"`
	OnResult  map[string]json.RawMessage `json:"on_result,omitempty"`
}

// Branch returns the callback data for the given answer merged with
// on_result. The second value is false when no branch exists for that
// answer.
func (f *FrontendCallback) Branch(confirmed bool) (map[string]json.RawMessage, bool) {
	if f == nil {
		return nil, false
	}
	branch := f.OnCancel
	if confirmed {
		branch = f.OnConfirm
	}
	if branch == nil {
		return nil, false
	}
	merged := make(map[string]json.RawMessage, len(branch)+len(f.OnResult))
	for key, value := range branch {
		merged[key] = value
	}
	for key, value := range f.OnResult {
		merged[key] = value
	}
	return merged, true
}

// AutomaticStateTransition returns the dialogue state the client should
// submit on the wizard's behalf after the given answer, if any.
func (f *FrontendCallback) AutomaticStateTransition(confirmed bool) (string, bool) {
	branch, ok := f.Branch(confirmed)
	if !ok {
		return "", false
	}
	raw, ok := branch["automatic_state_transition"]
	if !ok {
		return "", false
	}
	var target string
	if err := json.Unmarshal(raw, &target); err != nil || target == "" {
		return "", false
	}
	return target, true
}

// PerformAction asks the wizard to confirm or decline an action the
// operator may have requested.
type PerformAction struct {
	ActionName       string            `json:"action_name"`
	Title            string            `json:"title,omitempty"`
	Body             string            `json:"body,omitempty"`
	ConfirmLabel     string            `json:"confirmBtn,omitempty"`
	CancelLabel      string            `json:"cancelBtn,omitempty"`
	FrontendCallback *FrontendCallback `json:"frontend_callback,omitempty"`
}

func (PerformAction) EventName() string { return EventPerformAction }

// InputToggle switches a user's input on or off regardless of turn
// state. UserID zero addresses everyone receiving the event.
type InputToggle struct {
	RoomName string `json:"room_name"`
	UserID   int    `json:"user_id"`
	Enabled  bool   `json:"-"`
}

func (t InputToggle) EventName() string {
	if t.Enabled {
		return EventEnableUserInput
	}
	return EventDisableUserInput
}

// ChatMessage is a text line posted to the room.
type ChatMessage struct {
	User      UserRef `json:"user"`
	Room      string  `json:"room"`
	Message   string  `json:"msg"`
	Timestamp float64 `json:"timestamp"`
	Private   bool    `json:"private"`
}

func (ChatMessage) EventName() string { return EventTextMessage }

// ImageMessage is an image posted to the room.
type ImageMessage struct {
	User      UserRef `json:"user"`
	Room      string  `json:"room"`
	URL       string  `json:"url"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Timestamp float64 `json:"timestamp"`
	Private   bool    `json:"private"`
}

func (ImageMessage) EventName() string { return EventImageMessage }

// Ready asks the server to (re)announce the rooms this client is in.
type Ready struct{}

func (Ready) EventName() string { return EventReady }

// UserFinishTask asks the server to end the task in a room.
type UserFinishTask struct {
	UserID   int    `json:"user_id"`
	RoomName string `json:"room_name"`
}

func (UserFinishTask) EventName() string { return EventUserFinishTask }

// Text posts a chat message to a room.
type Text struct {
	Room    string `json:"room"`
	Message string `json:"msg"`
}

func (Text) EventName() string { return EventText }
