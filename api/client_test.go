// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient starts server with handler and returns a client for it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{
		BaseURL:    server.URL + "/api/v2",
		Token:      "tok-123",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, writer http.ResponseWriter, status int, value any) {
	t.Helper()
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(value); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  ClientConfig
		wantErr bool
	}{
		{"valid", ClientConfig{BaseURL: "http://localhost:5000/api/v2", Token: "t"}, false},
		{"empty URL", ClientConfig{Token: "t"}, true},
		{"empty token", ClientConfig{BaseURL: "http://localhost:5000"}, true},
		{"invalid URL", ClientConfig{BaseURL: "://invalid", Token: "t"}, true},
		{"websocket scheme", ClientConfig{BaseURL: "ws://localhost:5000", Token: "t"}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewClient(test.config)
			if (err != nil) != test.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, test.wantErr)
			}
		})
	}
}

func TestGetRoom(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet {
			t.Errorf("method = %s", request.Method)
		}
		if request.URL.Path != "/api/v2/room/wizard_task_3" {
			t.Errorf("path = %s", request.URL.Path)
		}
		if got := request.Header.Get("Authorization"); got != "Token tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(t, writer, http.StatusOK, map[string]any{
			"name":          "wizard_task_3",
			"read_only":     false,
			"show_users":    true,
			"current_users": map[string]string{"4": "wizard", "5": "user"},
		})
	})

	room, err := client.GetRoom(context.Background(), "wizard_task_3")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if room.Name != "wizard_task_3" || !room.ShowUsers {
		t.Errorf("room = %+v", room)
	}
	occupants, err := room.Occupants()
	if err != nil {
		t.Fatalf("Occupants: %v", err)
	}
	if len(occupants) != 2 || occupants[4] != "wizard" {
		t.Errorf("occupants = %v", occupants)
	}
}

func TestGetUserFillsMissingID(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(t, writer, http.StatusOK, map[string]any{
			"name":    "wizard",
			"token":   "tok-123",
			"role_id": RoleWizard,
		})
	})
	user, err := client.GetUser(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.ID != 4 || user.RoleID != RoleWizard || user.Token != "tok-123" {
		t.Errorf("user = %+v", user)
	}
}

func TestGetUserLogs(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v2/user/4/logs" {
			t.Errorf("path = %s", request.URL.Path)
		}
		fmt.Fprint(writer, `{"wizard_task_3":[
			{"event":"join","user":{"id":4,"name":"wizard"},"room":"wizard_task_3","data":{}},
			{"event":"text_message","user":{"id":5,"name":"user"},"room":"wizard_task_3","data":{"msg":"Hi"}}
		]}`)
	})
	history, err := client.GetUserLogs(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetUserLogs: %v", err)
	}
	entries := history["wizard_task_3"]
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].IsChat() || !entries[1].IsChat() {
		t.Errorf("IsChat classification wrong: %+v", entries)
	}
}

func TestSubmitDialogueChoice(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			t.Errorf("method = %s", request.Method)
		}
		if request.URL.Path != "/api/v2/submit_dialogue_choice/4" {
			t.Errorf("path = %s", request.URL.Path)
		}
		var body SubmitChoiceRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Text != "Fuel is at 80%" || body.StateName != "tell_fuel" {
			t.Errorf("body = %+v", body)
		}
		writeJSON(t, writer, http.StatusOK, map[string]string{"transition_media": "/static/img/map.png"})
	})

	response, err := client.SubmitDialogueChoice(context.Background(), 4, SubmitChoiceRequest{
		Text:      "Fuel is at 80%",
		StateName: "tell_fuel",
	})
	if err != nil {
		t.Fatalf("SubmitDialogueChoice: %v", err)
	}
	if response.TransitionMedia != "/static/img/map.png" {
		t.Errorf("TransitionMedia = %q", response.TransitionMedia)
	}
}

func TestSubmitPerformActionCallback(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		var body PerformActionRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.ActionName != "robot_launch" || !body.Result {
			t.Errorf("body = %+v", body)
		}
		fmt.Fprint(writer, `{"frontend_callback":{"on_confirm":{"automatic_state_transition":"launched"}}}`)
	})
	response, err := client.SubmitPerformAction(context.Background(), 4, PerformActionRequest{
		ActionName: "robot_launch",
		Result:     true,
	})
	if err != nil {
		t.Fatalf("SubmitPerformAction: %v", err)
	}
	target, ok := response.FrontendCallback.AutomaticStateTransition(true)
	if !ok || target != "launched" {
		t.Errorf("transition = %q, %v", target, ok)
	}
}

func TestEmptyBodyIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})
	hint, err := client.RequestTaskHint(context.Background(), 4)
	if err != nil {
		t.Fatalf("RequestTaskHint: %v", err)
	}
	if hint.StateName != "" || hint.UtteranceID != "" {
		t.Errorf("hint = %+v, want zero", hint)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantMessage     string
		wantInvalidSess bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"unauthorized"}`, "unauthorized", true},
		{"invalid session text", http.StatusBadRequest, `{"error":"invalid session id"}`, "invalid session id", true},
		{"reason field", http.StatusBadRequest, `{"reason":"text is empty"}`, "text is empty", false},
		{"not json", http.StatusInternalServerError, `<html>oops</html>`, "", false},
		{"not found", http.StatusNotFound, `{"error":"room not found"}`, "room not found", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
				writer.WriteHeader(test.status)
				fmt.Fprint(writer, test.body)
			})
			_, err := client.GetRoom(context.Background(), "r")
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != test.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, test.status)
			}
			if apiErr.Message != test.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, test.wantMessage)
			}
			if got := IsSessionInvalid(err); got != test.wantInvalidSess {
				t.Errorf("IsSessionInvalid = %v, want %v", got, test.wantInvalidSess)
			}
			if !IsStatus(err, test.status) {
				t.Errorf("IsStatus(%d) = false", test.status)
			}
		})
	}
}

func TestIsSessionInvalidPlainError(t *testing.T) {
	if !IsSessionInvalid(errors.New("transport: server error: Invalid session ID")) {
		t.Error("push-channel error text should classify as session invalid")
	}
	if IsSessionInvalid(nil) {
		t.Error("nil should not be session invalid")
	}
	if IsSessionInvalid(errors.New("connection refused")) {
		t.Error("unrelated error classified as session invalid")
	}
}

func TestUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		got = request.Header.Get("User-Agent")
		writeJSON(t, writer, http.StatusOK, Token{})
	}))
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{
		BaseURL:    server.URL,
		Token:      "tok-123",
		UserAgent:  "crwiz/1.2.3",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.GetToken(context.Background(), "tok-123"); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got != "crwiz/1.2.3" {
		t.Errorf("User-Agent = %q", got)
	}
}
