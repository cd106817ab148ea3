// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"encoding/json"
	"testing"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/protocol"
	"github.com/crwiz-project/crwiz/session"
)

func TestPresenterCopiesMutableArguments(t *testing.T) {
	queue := &messageQueue{}
	presenter := NewPresenter(queue)

	peers := map[int]string{2: "operator"}
	presenter.SetPeers(peers)
	options := []session.DialogueOption{{ID: "yes", Text: "Yes"}}
	presenter.ShowChoices(session.ChoiceView{Options: options})
	peers[3] = "late"
	options[0].Text = "changed"

	if got := queue.messages[0].(peersMsg).peers; len(got) != 1 {
		t.Errorf("peers message shares the caller's map: %v", got)
	}
	if got := queue.messages[1].(choicesMsg).view.Options[0].Text; got != "Yes" {
		t.Errorf("choices message shares the caller's slice: %q", got)
	}
}

func TestPresenterHistory(t *testing.T) {
	queue := &messageQueue{}
	NewPresenter(queue).ShowHistory([]api.LogEntry{
		{Event: protocol.EventTextMessage, User: protocol.UserRef{ID: 2, Name: "operator"}, Data: json.RawMessage(`{"msg":"hello"}`)},
		{Event: protocol.EventTextMessage, User: protocol.UserRef{ID: 2, Name: "operator"}, Data: json.RawMessage(`{"message":"older"}`)},
		{Event: protocol.EventImageMessage, User: protocol.UserRef{ID: 1, Name: "me"}, Data: json.RawMessage(`{"url":"https://example.com/a.png","private":true}`)},
		{Event: protocol.EventTextMessage, Data: json.RawMessage(`not json`)},
	})

	lines := queue.messages[0].(historyMsg).lines
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %+v", len(lines), lines)
	}
	if lines[0].Text != "hello" || lines[1].Text != "older" {
		t.Errorf("texts = %q, %q", lines[0].Text, lines[1].Text)
	}
	if lines[2].ImageURL != "https://example.com/a.png" || !lines[2].Private {
		t.Errorf("image line = %+v", lines[2])
	}
}

func TestPresenterConfirmation(t *testing.T) {
	queue := &messageQueue{}
	presenter := NewPresenter(queue)
	presenter.ShowConfirmation(session.Prompt{Title: "Action"})
	presenter.HideConfirmation()

	if prompt := queue.messages[0].(confirmationMsg).prompt; prompt == nil || prompt.Title != "Action" {
		t.Errorf("show = %+v", prompt)
	}
	if prompt := queue.messages[1].(confirmationMsg).prompt; prompt != nil {
		t.Errorf("hide carries a prompt: %+v", prompt)
	}
}
