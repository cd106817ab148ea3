// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"errors"
	"maps"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/protocol"
)

func TestNewRequiresCollaborators(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	presenter := newRecordingPresenter()
	emitter := &recordingEmitter{}
	for name, config := range map[string]Config{
		"api":       {Emitter: emitter, Presenter: presenter},
		"emitter":   {API: fake, Presenter: presenter},
		"presenter": {API: fake, Emitter: emitter},
	} {
		if _, err := New(config); err == nil {
			t.Errorf("New without %s succeeded", name)
		}
	}
}

func TestReadyEmittedOnce(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.settle()
	if err := h.sync.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sent := h.emitter.sent()
	if len(sent) != 1 || sent[0] != (protocol.Ready{}) {
		t.Errorf("emitted %v, want a single ready", sent)
	}
}

func TestHydration(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()

	state := h.sync.Snapshot()
	if state.Room != testRoom {
		t.Errorf("Room = %q", state.Room)
	}
	if state.LocalUser == nil || state.LocalUser.ID != testUserID || state.LocalUser.Role != RolePlain {
		t.Fatalf("LocalUser = %+v", state.LocalUser)
	}
	if !maps.Equal(state.Peers, map[int]string{2: "operator"}) {
		t.Errorf("Peers = %v, want only the operator", state.Peers)
	}
	if !state.LocalUser.Permissions.Text {
		t.Error("text permission not applied")
	}

	h.presenter.snapshot(func(p *recordingPresenter) {
		order := []string{"ApplyRoom", "SetPeers", "ApplyLayout", "ApplyRoleLayout", "ShowHistory", "SetComposePermitted"}
		last := -1
		for _, call := range order {
			index := slices.Index(p.calls, call)
			if index < 0 {
				t.Fatalf("%s never called; calls %v", call, p.calls)
			}
			if index < last {
				t.Errorf("%s out of order; calls %v", call, p.calls)
			}
			last = index
		}
		if !p.room.ShowUsers || p.room.Label != "Task 1" {
			t.Errorf("room view = %+v", p.room)
		}
		if p.layout.Title != "Emergency response" {
			t.Errorf("layout = %+v", p.layout)
		}
		if !p.roleLayout.TaskRoom || p.roleLayout.Role != RolePlain || len(p.roleLayout.GeneralOptions) != 0 {
			t.Errorf("role layout = %+v", p.roleLayout)
		}
		if len(p.history) != 1 || p.history[0].Event != protocol.EventTextMessage {
			t.Errorf("history = %+v, want the one chat entry", p.history)
		}
		if !p.composePermit {
			t.Error("composition not permitted")
		}
		// Turn taking starts on without the turn.
		if p.textInput {
			t.Error("text input enabled before the first status push")
		}
	})
}

func TestSecondHydrationReplacesState(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	h := newHarness(t, fake)
	h.join()
	h.push(protocol.Status{Type: protocol.StatusJoin, User: protocol.UserRef{ID: 5, Name: "visitor"}})
	if _, ok := h.sync.Snapshot().Peers[5]; !ok {
		t.Fatal("status join not applied before the second hydration")
	}

	fake.mu.Lock()
	fake.user = api.User{ID: 7, Name: "second", Token: testToken, RoleID: api.RoleWizard}
	fake.room.CurrentUsers = json.RawMessage(`{"7":"second","3":"x"}`)
	fake.mu.Unlock()
	h.push(protocol.JoinedRoom{Room: testRoom, User: 7})

	state := h.sync.Snapshot()
	user := state.LocalUser
	if user == nil || user.ID != 7 || user.Role != RoleWizard || user.DisplayName != "second" {
		t.Fatalf("LocalUser = %+v, want the second user as wizard", user)
	}
	if user.CanFinishTask != FinishUnknown {
		t.Errorf("CanFinishTask carried over: %v", user.CanFinishTask)
	}
	want := map[int]string{3: "x"}
	if !maps.Equal(state.Peers, want) {
		t.Errorf("Peers = %v, want %v", state.Peers, want)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if !maps.Equal(p.peers, want) {
			t.Errorf("rendered peers = %v, want %v", p.peers, want)
		}
	})
}

func TestHistoryRefetchedWhenRoomMissing(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	fake.history = api.History{"waiting_room": {{Event: protocol.EventTextMessage}}}
	h := newHarness(t, fake)
	h.join()

	if got := fake.callCount("logs"); got != 2 {
		t.Errorf("logs fetched %d times, want 2", got)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if len(p.history) != 0 {
			t.Errorf("history from another room shown: %+v", p.history)
		}
	})
}

func TestEventsBeforeHydrationDropped(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.push(
		protocol.Status{Type: protocol.StatusJoin, User: protocol.UserRef{ID: 3, Name: "early"}},
		protocol.StatusUpdate{RemainingSeconds: intPtr(60), Running: boolPtr(true)},
		protocol.ChatMessage{User: protocol.UserRef{ID: 2}, Message: "too soon"},
		protocol.DialogueChoices{ChoiceSelection: &protocol.ChoiceSelection{}},
	)
	if h.sync.Snapshot().LocalUser != nil {
		t.Fatal("hydrated without joined_room")
	}
	h.join()

	if peers := h.sync.Snapshot().Peers; !maps.Equal(peers, map[int]string{2: "operator"}) {
		t.Errorf("Peers = %v", peers)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if len(p.timer) != 0 || len(p.messages) != 0 {
			t.Errorf("early events applied: timer %v messages %v", p.timer, p.messages)
		}
	})
}

func TestPeersNeverContainLocalUser(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()

	h.push(protocol.Status{Type: protocol.StatusJoin, User: protocol.UserRef{ID: testUserID, Name: "me"}})
	if _, ok := h.sync.Snapshot().Peers[testUserID]; ok {
		t.Fatal("local user added as a peer by status join")
	}

	h.push(
		protocol.Status{Type: protocol.StatusJoin, User: protocol.UserRef{ID: 3, Name: "observer"}},
		protocol.Status{Type: protocol.StatusLeave, User: protocol.UserRef{ID: 2}},
	)
	if peers := h.sync.Snapshot().Peers; !maps.Equal(peers, map[int]string{3: "observer"}) {
		t.Fatalf("Peers = %v", peers)
	}

	// Fewer than two peers: the roster is adopted, minus the local user.
	h.push(protocol.StatusUpdate{Users: map[int]string{1: "me", 2: "operator", 4: "helper"}})
	if peers := h.sync.Snapshot().Peers; !maps.Equal(peers, map[int]string{2: "operator", 4: "helper"}) {
		t.Fatalf("Peers after roster = %v", peers)
	}

	// Two peers already known: later rosters are ignored.
	h.push(protocol.StatusUpdate{Users: map[int]string{5: "late"}})
	if peers := h.sync.Snapshot().Peers; !maps.Equal(peers, map[int]string{2: "operator", 4: "helper"}) {
		t.Errorf("Peers after second roster = %v", peers)
	}
}

func TestStatusUpdateRouting(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()

	h.push(protocol.StatusUpdate{
		RemainingSeconds: intPtr(90),
		Running:          boolPtr(true),
		UserTurns:        boolPtr(true),
		TurnUserID:       intPtr(testUserID),
		CanFinishTask:    boolPtr(true),
		TaskProgress:     floatPtr(40),
		OperatorWait:     &protocol.OperatorWait{UserID: 2, Reason: "operator is thinking"},
		Fields: map[string]json.RawMessage{
			"score":   raw(`80`),
			"robot":   raw(`"Husky"`),
			"nested":  raw(`{"a":1}`),
			"missing": raw(`null`),
		},
	})

	user := h.sync.Snapshot().LocalUser
	if !user.TurnTakingEnabled || !user.HasCurrentTurn {
		t.Errorf("turn = %v/%v, want both true", user.TurnTakingEnabled, user.HasCurrentTurn)
	}
	if user.CanFinishTask != FinishYes {
		t.Errorf("CanFinishTask = %v", user.CanFinishTask)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if !slices.Equal(p.timer, []string{"1:30"}) {
			t.Errorf("timer = %v", p.timer)
		}
		if !p.textInput {
			t.Error("text input not enabled with the turn")
		}
		if p.finishAvailable != FinishYes {
			t.Errorf("finish availability = %v", p.finishAvailable)
		}
		want := map[string]string{"score": "80", "robot": "Husky", timeLeftSlot: "1:30"}
		if !maps.Equal(p.slots, want) {
			t.Errorf("slots = %v, want %v", p.slots, want)
		}
		if p.progress != 40 {
			t.Errorf("progress = %v", p.progress)
		}
		if !p.operatorWaiting || p.operatorReason != "operator is thinking" {
			t.Errorf("operator wait = %v %q", p.operatorWaiting, p.operatorReason)
		}
	})

	h.advance(time.Second)
	h.presenter.snapshot(func(p *recordingPresenter) {
		if got := p.timer[len(p.timer)-1]; got != "1:29" {
			t.Errorf("timer after a tick = %q", got)
		}
	})

	// The next push hands the turn to someone else and clears the wait.
	h.push(protocol.StatusUpdate{UserTurns: boolPtr(true), TurnUserID: intPtr(2)})
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.textInput {
			t.Error("text input still enabled without the turn")
		}
		if p.operatorWaiting {
			t.Error("operator wait not released")
		}
	})
}

func TestStatusUpdateWithoutTurnFieldsKeepsTurn(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()
	before := *h.sync.Snapshot().LocalUser
	enables := h.presenter.count("EnableTextInput")
	disables := h.presenter.count("DisableTextInput")

	event, err := protocol.Decode(protocol.EventStatusUpdate,
		raw(`{"task_progress": 45, "can_finish_task": true, "unrelated_field": "x"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	h.push(event)

	after := h.sync.Snapshot().LocalUser
	if after.TurnTakingEnabled != before.TurnTakingEnabled || after.HasCurrentTurn != before.HasCurrentTurn {
		t.Errorf("turn = %v/%v, want %v/%v", after.TurnTakingEnabled, after.HasCurrentTurn,
			before.TurnTakingEnabled, before.HasCurrentTurn)
	}
	if after.CanFinishTask != FinishYes {
		t.Errorf("CanFinishTask = %v", after.CanFinishTask)
	}
	if got := h.presenter.count("EnableTextInput"); got != enables {
		t.Errorf("EnableTextInput calls %d -> %d", enables, got)
	}
	if got := h.presenter.count("DisableTextInput"); got != disables {
		t.Errorf("DisableTextInput calls %d -> %d", disables, got)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.progress != 45 {
			t.Errorf("progress = %v", p.progress)
		}
		if p.slots["unrelated_field"] != "x" {
			t.Errorf("slots = %v", p.slots)
		}
		if p.finishAvailable != FinishYes {
			t.Errorf("finish availability = %v", p.finishAvailable)
		}
	})
}

func TestStatusUpdateAfterFailedPermissions(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	fake.fail("token", errUnavailable)
	h := newHarness(t, fake)
	h.push(protocol.JoinedRoom{Room: testRoom, User: testUserID})
	if h.sync.Snapshot().LocalUser == nil {
		t.Fatal("user step did not run")
	}

	h.push(protocol.StatusUpdate{
		RemainingSeconds: intPtr(60),
		Running:          boolPtr(true),
		UserTurns:        boolPtr(true),
		TurnUserID:       intPtr(testUserID),
		CanFinishTask:    boolPtr(true),
	})

	user := h.sync.Snapshot().LocalUser
	if !user.TurnTakingEnabled || !user.HasCurrentTurn {
		t.Errorf("turn = %v/%v, want both true", user.TurnTakingEnabled, user.HasCurrentTurn)
	}
	if user.CanFinishTask != FinishYes {
		t.Errorf("CanFinishTask = %v", user.CanFinishTask)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if !slices.Equal(p.timer, []string{"1:00"}) {
			t.Errorf("timer = %v", p.timer)
		}
	})
}

func TestStatusUpdateOnlyReactsToTurnChanges(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()
	h.push(protocol.StatusUpdate{UserTurns: boolPtr(false)})
	before := h.presenter.count("EnableTextInput")
	h.push(protocol.StatusUpdate{UserTurns: boolPtr(false)}, protocol.StatusUpdate{UserTurns: boolPtr(false)})
	if after := h.presenter.count("EnableTextInput"); after != before {
		t.Errorf("Turn Controller re-ran without a change: %d -> %d", before, after)
	}
}

func TestReadOnlyClosesRoomOnce(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()
	h.push(protocol.StatusUpdate{UserTurns: boolPtr(false)})

	h.push(protocol.RoomProperties{ReadOnly: boolPtr(true)}, protocol.RoomProperties{ReadOnly: boolPtr(true)})
	h.push(protocol.RoomProperties{ReadOnly: boolPtr(false)})

	if !h.sync.Snapshot().RoomReadOnly {
		t.Error("read-only reverted")
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.closed != 1 {
			t.Errorf("room closed %d times, want 1", p.closed)
		}
		if p.textInput || p.finishEnabled || p.hintEnabled {
			t.Errorf("affordances left on: text %v finish %v hint %v", p.textInput, p.finishEnabled, p.hintEnabled)
		}
	})

	h.sync.SubmitText("anyone there?")
	h.settle()
	if texts := h.emitter.texts(); len(texts) != 0 {
		t.Errorf("message sent into a closed room: %v", texts)
	}
}

func TestReadOnlyRoomAtHydration(t *testing.T) {
	fake := newFakeAPI(api.RoleWizard)
	fake.room.ReadOnly = true
	h := newHarness(t, fake)
	h.join()

	if fake.callCount("choices") != 0 {
		t.Error("choices fetched for a closed room")
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.closed != 1 {
			t.Errorf("room closed %d times, want 1", p.closed)
		}
		if p.roleLayout.TaskRoom {
			t.Error("closed room laid out as a task room")
		}
	})
}

func TestSessionInvalidReloads(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	fake.fail("token", &api.APIError{StatusCode: 401, Message: "invalid session id"})
	h := newHarness(t, fake)
	h.push(protocol.JoinedRoom{Room: testRoom, User: testUserID})

	select {
	case <-h.sync.Invalidated():
	case <-time.After(5 * time.Second):
		t.Fatal("session not invalidated")
	}
	if err := h.result(); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("Run = %v, want ErrSessionInvalid", err)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.reloaded != 1 {
			t.Errorf("reloaded %d times", p.reloaded)
		}
	})
	select {
	case <-h.sync.Hydrated():
		t.Error("hydrated despite the invalid session")
	default:
	}
}

func TestTransientFailureAbandonsHydration(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	fake.fail("layout", errUnavailable)
	h := newHarness(t, fake)
	h.push(protocol.JoinedRoom{Room: testRoom, User: testUserID})

	select {
	case <-h.sync.Hydrated():
		t.Fatal("hydrated despite a failed layout request")
	default:
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.reloaded != 0 || slices.Contains(p.calls, "ApplyLayout") {
			t.Errorf("unexpected calls %v", p.calls)
		}
	})
	// The user step ran, so later pushes are applied.
	if h.sync.Snapshot().LocalUser == nil {
		t.Error("user step was rolled back")
	}
}

func TestInputToggle(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()
	h.push(protocol.StatusUpdate{UserTurns: boolPtr(false)})

	textInput := func() bool {
		var enabled bool
		h.presenter.snapshot(func(p *recordingPresenter) { enabled = p.textInput })
		return enabled
	}
	if !textInput() {
		t.Fatal("text input disabled without turn taking")
	}
	h.push(protocol.InputToggle{UserID: testUserID, Enabled: false})
	if textInput() {
		t.Fatal("disable_user_input ignored")
	}
	h.push(protocol.InputToggle{UserID: 9, Enabled: true})
	if textInput() {
		t.Fatal("toggle for another user applied")
	}
	h.push(protocol.InputToggle{Enabled: true})
	if !textInput() {
		t.Error("room-wide enable_user_input ignored")
	}
}

func TestInboundChatMessages(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()
	h.push(
		protocol.ChatMessage{User: protocol.UserRef{ID: 2, Name: "operator"}, Message: "status?"},
		protocol.ImageMessage{User: protocol.UserRef{ID: testUserID, Name: "me"}, URL: "http://media/map.png"},
	)
	h.presenter.snapshot(func(p *recordingPresenter) {
		want := []ChatLine{
			{From: "operator", FromID: 2, Text: "status?"},
			{From: "me", FromID: testUserID, ImageURL: "http://media/map.png", Own: true},
		}
		if !reflect.DeepEqual(p.messages, want) {
			t.Errorf("messages = %+v", p.messages)
		}
	})
}

func TestSubmitText(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()

	h.sync.SubmitText("waiting for my turn")
	h.settle()
	if texts := h.emitter.texts(); len(texts) != 0 {
		t.Fatalf("sent without the turn: %v", texts)
	}

	h.push(protocol.StatusUpdate{UserTurns: boolPtr(true), TurnUserID: intPtr(testUserID)})
	h.sync.SubmitText("  robot is at the gate ")
	h.sync.SubmitText("   ")
	h.settle()

	sent := h.emitter.sent()
	last := sent[len(sent)-1]
	if last != (protocol.Text{Room: testRoom, Message: "Robot is at the gate"}) {
		t.Errorf("last event = %#v", last)
	}
	if texts := h.emitter.texts(); len(texts) != 1 {
		t.Errorf("texts = %v, want one", texts)
	}
}

func TestPermissionsUpdate(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	h := newHarness(t, fake)
	h.join()
	h.push(protocol.StatusUpdate{UserTurns: boolPtr(false)})

	fake.mu.Lock()
	fake.token = api.Token{}
	fake.mu.Unlock()
	h.push(protocol.UserPermissionsUpdate{})

	if got := fake.callCount("token"); got != 2 {
		t.Errorf("token fetched %d times, want 2", got)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.composePermit || p.textInput {
			t.Errorf("composition still permitted: permit %v text %v", p.composePermit, p.textInput)
		}
	})
}

func TestWaitingRoomNeverComposes(t *testing.T) {
	fake := newFakeAPI(api.RolePlain)
	fake.room.Name = "waiting_room"
	fake.history = api.History{"waiting_room": nil}
	h := newHarness(t, fake)
	h.push(protocol.JoinedRoom{Room: "waiting_room", User: testUserID})
	h.push(protocol.StatusUpdate{UserTurns: boolPtr(false)})

	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.roleLayout.TaskRoom {
			t.Error("waiting room laid out as a task room")
		}
		if !slices.Contains(p.calls, "ShowHistory") {
			t.Error("history not shown")
		}
	})
}

func TestFinishTask(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RolePlain))
	h.join()

	h.push(protocol.StatusUpdate{CanFinishTask: boolPtr(false)})
	h.sync.RequestFinishTask()
	h.sync.Confirm()
	h.settle()
	h.presenter.snapshot(func(p *recordingPresenter) {
		if len(p.prompts) != 1 || p.prompts[0] != finishUnavailablePrompt {
			t.Fatalf("prompts = %+v", p.prompts)
		}
		if !p.promptOpen {
			t.Error("confirm closed a dialog that offers no confirm button")
		}
	})
	h.sync.Cancel()
	h.settle()

	h.push(protocol.StatusUpdate{CanFinishTask: boolPtr(true)})
	h.sync.RequestFinishTask()
	h.sync.Confirm()
	h.settle()

	sent := h.emitter.sent()
	want := protocol.UserFinishTask{UserID: testUserID, RoomName: testRoom}
	if sent[len(sent)-1] != want {
		t.Errorf("last event = %#v, want %#v", sent[len(sent)-1], want)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.promptOpen {
			t.Error("dialog left open after confirm")
		}
	})
}
