// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"

	"github.com/crwiz-project/crwiz/protocol"
)

// Role ids assigned by the server.
const (
	RolePlain    = 1
	RoleOperator = 2
	RoleWizard   = 3
)

// Room is the response of GET room/{name}.
type Room struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Layout      int    `json:"layout"`
	ReadOnly    bool   `json:"read_only"`
	ShowUsers   bool   `json:"show_users"`
	ShowLatency bool   `json:"show_latency"`
	Static      bool   `json:"static"`
	// Users and CurrentUsers map decimal user ids to display names.
	// Decode them with [Room.Occupants].
	Users        json.RawMessage `json:"users,omitempty"`
	CurrentUsers json.RawMessage `json:"current_users,omitempty"`
}

// Occupants returns the users currently connected to the room.
func (r *Room) Occupants() (map[int]string, error) {
	if len(r.CurrentUsers) == 0 || string(r.CurrentUsers) == "null" {
		return map[int]string{}, nil
	}
	return protocol.DecodeRoster(r.CurrentUsers)
}

// User is the response of GET user/{id}.
type User struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Token     string   `json:"token"`
	Rooms     []string `json:"rooms"`
	SessionID string   `json:"session_id"`
	RoleID    int      `json:"role_id"`
	GameToken string   `json:"game_token,omitempty"`
}

// Layout is the response of GET room/{name}/layout.
type Layout struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	HTML     string `json:"html"`
	CSS      string `json:"css"`
	Script   string `json:"script"`
}

// LogEntry is one recorded event in a user's history.
type LogEntry struct {
	Event       string           `json:"event"`
	User        protocol.UserRef `json:"user"`
	Room        string           `json:"room"`
	Data        json.RawMessage  `json:"data"`
	DateCreated float64          `json:"date_created"`
}

// IsChat reports whether the entry is a text or image message.
func (e LogEntry) IsChat() bool {
	return e.Event == protocol.EventTextMessage || e.Event == protocol.EventImageMessage
}

// History is the response of GET user/{id}/logs: entries keyed by room
// name.
type History map[string][]LogEntry

// MessagePermissions is the message block of a token's permissions.
type MessagePermissions struct {
	Text      bool `json:"text"`
	Image     bool `json:"image"`
	Command   bool `json:"command"`
	Broadcast bool `json:"broadcast"`
}

// Permissions is the subset of a token's permissions the client uses.
type Permissions struct {
	Message MessagePermissions `json:"message"`
}

// Token is the response of GET token/{token}.
type Token struct {
	ID          string      `json:"id,omitempty"`
	Permissions Permissions `json:"permissions"`
}

// SubmitChoiceRequest is the body of submit_dialogue_choice.
type SubmitChoiceRequest struct {
	Text      string `json:"text"`
	StateName string `json:"state_name"`
}

// SubmitChoiceResponse is the reply of submit_dialogue_choice.
// TransitionMedia is set when the new state shows an image.
type SubmitChoiceResponse struct {
	TransitionMedia string `json:"transition_media,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// PerformActionRequest is the body of submit_perform_action.
type PerformActionRequest struct {
	ActionName string `json:"action_name"`
	Result     bool   `json:"result"`
}

// PerformActionResponse is the reply of submit_perform_action. A
// callback here replaces the one that came with the push.
type PerformActionResponse struct {
	FrontendCallback *protocol.FrontendCallback `json:"frontend_callback,omitempty"`
	Reason           string                     `json:"reason,omitempty"`
}

// TaskHint is the reply of request_task_hint. Either field may name the
// hinted option.
type TaskHint struct {
	StateName   string  `json:"state_name,omitempty"`
	UtteranceID string  `json:"utterance_id,omitempty"`
	Probability float64 `json:"probability,omitempty"`
}
