// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/lib/clock"
	"github.com/crwiz-project/crwiz/lib/testutil"
	"github.com/crwiz-project/crwiz/protocol"
)

const (
	testRoom   = "wizard_task_1"
	testUserID = 1
	testToken  = "token-1"
)

// recordingPresenter remembers the latest state of every affordance and
// the order of calls.
type recordingPresenter struct {
	mu sync.Mutex

	calls []string

	textInput       bool
	dialogueOptions bool
	peers           map[int]string
	room            RoomView
	layout          api.Layout
	roleLayout      RoleLayout
	history         []api.LogEntry
	messages        []ChatLine
	composePermit   bool
	operatorReason  string
	operatorWaiting bool
	choices         []ChoiceView
	hintEnabled     bool
	hintEnables     int
	flashed         []string
	finishAvailable FinishAvailability
	finishEnabled   bool
	timer           []string
	slots           map[string]string
	progress        float64
	prompts         []Prompt
	promptOpen      bool
	closed          int
	reloaded        int
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{finishEnabled: true, slots: map[string]string{}}
}

func (p *recordingPresenter) record(call string, apply func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if apply != nil {
		apply()
	}
}

func (p *recordingPresenter) EnableTextInput() {
	p.record("EnableTextInput", func() { p.textInput = true })
}

func (p *recordingPresenter) DisableTextInput() {
	p.record("DisableTextInput", func() { p.textInput = false })
}

func (p *recordingPresenter) EnableDialogueOptions() {
	p.record("EnableDialogueOptions", func() { p.dialogueOptions = true })
}

func (p *recordingPresenter) DisableDialogueOptions() {
	p.record("DisableDialogueOptions", func() { p.dialogueOptions = false })
}

func (p *recordingPresenter) SetPeers(peers map[int]string) {
	p.record("SetPeers", func() { p.peers = maps.Clone(peers) })
}

func (p *recordingPresenter) ApplyRoom(room RoomView) {
	p.record("ApplyRoom", func() { p.room = room })
}

func (p *recordingPresenter) ApplyLayout(layout api.Layout) {
	p.record("ApplyLayout", func() { p.layout = layout })
}

func (p *recordingPresenter) ApplyRoleLayout(layout RoleLayout) {
	p.record("ApplyRoleLayout", func() { p.roleLayout = layout })
}

func (p *recordingPresenter) ShowHistory(entries []api.LogEntry) {
	p.record("ShowHistory", func() { p.history = slices.Clone(entries) })
}

func (p *recordingPresenter) AppendMessage(line ChatLine) {
	p.record("AppendMessage", func() { p.messages = append(p.messages, line) })
}

func (p *recordingPresenter) SetComposePermitted(permitted bool) {
	p.record("SetComposePermitted", func() { p.composePermit = permitted })
}

func (p *recordingPresenter) SetOperatorWait(reason string, waiting bool) {
	p.record("SetOperatorWait", func() {
		p.operatorReason = reason
		p.operatorWaiting = waiting
	})
}

func (p *recordingPresenter) ShowChoices(view ChoiceView) {
	p.record("ShowChoices", func() { p.choices = append(p.choices, view) })
}

func (p *recordingPresenter) SetHintEnabled(enabled bool) {
	p.record("SetHintEnabled", func() {
		p.hintEnabled = enabled
		if enabled {
			p.hintEnables++
		}
	})
}

func (p *recordingPresenter) FlashOption(optionID string) {
	p.record("FlashOption", func() { p.flashed = append(p.flashed, optionID) })
}

func (p *recordingPresenter) SetFinishAvailable(availability FinishAvailability) {
	p.record("SetFinishAvailable", func() { p.finishAvailable = availability })
}

func (p *recordingPresenter) SetFinishEnabled(enabled bool) {
	p.record("SetFinishEnabled", func() { p.finishEnabled = enabled })
}

func (p *recordingPresenter) RenderTimer(text string) {
	p.record("RenderTimer", func() { p.timer = append(p.timer, text) })
}

func (p *recordingPresenter) SetSlot(name, value string) {
	p.record("SetSlot", func() { p.slots[name] = value })
}

func (p *recordingPresenter) SetProgress(percent float64) {
	p.record("SetProgress", func() { p.progress = percent })
}

func (p *recordingPresenter) ShowConfirmation(prompt Prompt) {
	p.record("ShowConfirmation", func() {
		p.prompts = append(p.prompts, prompt)
		p.promptOpen = true
	})
}

func (p *recordingPresenter) HideConfirmation() {
	p.record("HideConfirmation", func() { p.promptOpen = false })
}

func (p *recordingPresenter) CloseRoom() {
	p.record("CloseRoom", func() { p.closed++ })
}

func (p *recordingPresenter) Reload() {
	p.record("Reload", func() { p.reloaded++ })
}

func (p *recordingPresenter) count(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *recordingPresenter) lastChoices(t *testing.T) ChoiceView {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.choices) == 0 {
		t.Fatal("no choices shown")
	}
	return p.choices[len(p.choices)-1]
}

func (p *recordingPresenter) snapshot(read func(p *recordingPresenter)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	read(p)
}

// fakeAPI serves one room with one local user. Hooks replace the
// default behaviour of individual calls.
type fakeAPI struct {
	mu sync.Mutex

	room    api.Room
	user    api.User
	layout  api.Layout
	history api.History
	token   api.Token

	choices        func(ctx context.Context, call int) (*protocol.DialogueChoices, error)
	submitResponse api.SubmitChoiceResponse
	actionResponse api.PerformActionResponse
	hint           api.TaskHint
	failures       map[string]error

	calls       map[string]int
	submissions []api.SubmitChoiceRequest
	actions     []api.PerformActionRequest
}

func newFakeAPI(role int) *fakeAPI {
	return &fakeAPI{
		room: api.Room{
			Name:         testRoom,
			Label:        "Task 1",
			ShowUsers:    true,
			CurrentUsers: json.RawMessage(`{"1":"me","2":"operator"}`),
		},
		user:   api.User{ID: testUserID, Name: "me", Token: testToken, RoleID: role},
		layout: api.Layout{Title: "Emergency response"},
		history: api.History{testRoom: {
			{Event: protocol.EventTextMessage, User: protocol.UserRef{ID: 2, Name: "operator"}, Room: testRoom, Data: json.RawMessage(`{"msg":"hello"}`)},
			{Event: "join", User: protocol.UserRef{ID: 2, Name: "operator"}, Room: testRoom},
		}},
		token: api.Token{Permissions: api.Permissions{Message: api.MessagePermissions{Text: true}}},
		calls: map[string]int{},
	}
}

func (f *fakeAPI) enter(operation string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[operation]++
	return f.calls[operation], f.failures[operation]
}

func (f *fakeAPI) fail(operation string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = map[string]error{}
	}
	f.failures[operation] = err
}

func (f *fakeAPI) callCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

func (f *fakeAPI) setChoices(hook func(ctx context.Context, call int) (*protocol.DialogueChoices, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.choices = hook
}

func (f *fakeAPI) GetRoom(ctx context.Context, room string) (*api.Room, error) {
	if _, err := f.enter("room"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value := f.room
	return &value, nil
}

func (f *fakeAPI) GetUser(ctx context.Context, userID int) (*api.User, error) {
	if _, err := f.enter("user"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value := f.user
	return &value, nil
}

func (f *fakeAPI) GetRoomLayout(ctx context.Context, room string) (*api.Layout, error) {
	if _, err := f.enter("layout"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value := f.layout
	return &value, nil
}

func (f *fakeAPI) GetUserLogs(ctx context.Context, userID int) (api.History, error) {
	if _, err := f.enter("logs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.history), nil
}

func (f *fakeAPI) GetToken(ctx context.Context, token string) (*api.Token, error) {
	if _, err := f.enter("token"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value := f.token
	return &value, nil
}

func (f *fakeAPI) GetDialogueChoices(ctx context.Context, userID int) (*protocol.DialogueChoices, error) {
	call, err := f.enter("choices")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	hook := f.choices
	f.mu.Unlock()
	if hook == nil {
		return &protocol.DialogueChoices{Reason: "nothing to say"}, nil
	}
	return hook(ctx, call)
}

func (f *fakeAPI) SubmitDialogueChoice(ctx context.Context, userID int, request api.SubmitChoiceRequest) (*api.SubmitChoiceResponse, error) {
	if _, err := f.enter("submit"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, request)
	value := f.submitResponse
	return &value, nil
}

func (f *fakeAPI) SubmitPerformAction(ctx context.Context, userID int, request api.PerformActionRequest) (*api.PerformActionResponse, error) {
	if _, err := f.enter("action"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, request)
	value := f.actionResponse
	return &value, nil
}

func (f *fakeAPI) RequestTaskHint(ctx context.Context, userID int) (*api.TaskHint, error) {
	if _, err := f.enter("hint"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value := f.hint
	return &value, nil
}

func (f *fakeAPI) submitted() []api.SubmitChoiceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.submissions)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []protocol.Event
	err    error
}

func (e *recordingEmitter) Emit(event protocol.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) sent() []protocol.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

// texts returns the msg of every text event emitted.
func (e *recordingEmitter) texts() []string {
	var texts []string
	for _, event := range e.sent() {
		if text, ok := event.(protocol.Text); ok {
			texts = append(texts, text.Message)
		}
	}
	return texts
}

type harness struct {
	t         *testing.T
	sync      *Synchronizer
	api       *fakeAPI
	presenter *recordingPresenter
	emitter   *recordingEmitter
	clock     *clock.FakeClock
	done      chan error

	resultOnce sync.Once
	runErr     error
}

func newHarness(t *testing.T, fake *fakeAPI) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		api:       fake,
		presenter: newRecordingPresenter(),
		emitter:   &recordingEmitter{},
		clock:     clock.Fake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		done:      make(chan error, 1),
	}
	s, err := New(Config{
		API:       fake,
		Emitter:   h.emitter,
		Presenter: h.presenter,
		Clock:     h.clock,
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.sync = s

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		h.result()
	})
	return h
}

// result waits for Run to return.
func (h *harness) result() error {
	h.t.Helper()
	h.resultOnce.Do(func() {
		h.runErr = testutil.RequireReceive(h.t, h.done, 5*time.Second, "Run return")
	})
	return h.runErr
}

func (h *harness) push(events ...protocol.Event) {
	h.t.Helper()
	for _, event := range events {
		h.sync.HandleEvent(event)
	}
	h.settle()
}

func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.sync.WaitIdle(ctx); err != nil {
		h.t.Fatalf("session did not settle: %v", err)
	}
}

// join hydrates the session into testRoom.
func (h *harness) join() {
	h.t.Helper()
	h.push(protocol.JoinedRoom{Room: testRoom, User: testUserID})
	testutil.RequireClosed(h.t, h.sync.Hydrated(), 5*time.Second, "hydration")
}

// advance moves the fake clock one step at a time so callbacks that
// reschedule through the loop get to run.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	for d > 0 {
		step := min(d, time.Second)
		h.clock.Advance(step)
		h.settle()
		d -= step
	}
}

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }
func floatPtr(v float64) *float64 { return &v }
func raw(value string) json.RawMessage { return json.RawMessage(value) }

// waitFor polls cond until it holds. Use it only where WaitIdle cannot
// be used because a request is deliberately held open.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errUnavailable = errors.New("service unavailable")
