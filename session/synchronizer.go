// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/lib/clock"
	"github.com/crwiz-project/crwiz/protocol"
)

const (
	// DefaultSendCooldown is how long wizard composition stays disabled
	// after a submission when turn taking is off.
	DefaultSendCooldown = time.Second

	waitingRoom    = "waiting_room"
	taskRoomPrefix = "wizard_task"
	timeLeftSlot   = "time_left"
)

// ErrSessionInvalid is returned by Run once the server has rejected
// the session. The client must start over with a fresh Synchronizer.
var ErrSessionInvalid = errors.New("session: session invalid")

// API is the REST surface the session uses. *api.Client implements it.
type API interface {
	GetRoom(ctx context.Context, room string) (*api.Room, error)
	GetUser(ctx context.Context, userID int) (*api.User, error)
	GetRoomLayout(ctx context.Context, room string) (*api.Layout, error)
	GetUserLogs(ctx context.Context, userID int) (api.History, error)
	GetToken(ctx context.Context, token string) (*api.Token, error)
	GetDialogueChoices(ctx context.Context, userID int) (*protocol.DialogueChoices, error)
	SubmitDialogueChoice(ctx context.Context, userID int, request api.SubmitChoiceRequest) (*api.SubmitChoiceResponse, error)
	SubmitPerformAction(ctx context.Context, userID int, request api.PerformActionRequest) (*api.PerformActionResponse, error)
	RequestTaskHint(ctx context.Context, userID int) (*api.TaskHint, error)
}

// Emitter sends outgoing push events. *transport.Conn implements it.
type Emitter interface {
	Emit(event protocol.Event) error
}

// Config configures a Synchronizer.
type Config struct {
	API       API
	Emitter   Emitter
	Presenter Presenter

	// Clock drives the task timer, the hint delay and the send
	// cooldown. Nil means the real clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// GeneralOptions are the wizard's static options. Nil means
	// DefaultGeneralOptions; an empty non-nil slice means none.
	GeneralOptions []GeneralOption

	// HintDelay defaults to DefaultHintDelay.
	HintDelay time.Duration

	// SendCooldown defaults to DefaultSendCooldown.
	SendCooldown time.Duration
}

// Synchronizer owns the session state. It applies push events and user
// actions in arrival order on its Loop, drives the REST round-trips and
// tells the presenter what to draw.
type Synchronizer struct {
	api       API
	emitter   Emitter
	presenter Presenter
	clock     clock.Clock
	logger    *slog.Logger
	loop      *Loop

	// ctx is set by Run before any task executes.
	ctx context.Context

	state     *State
	snapshot  atomic.Pointer[State]
	pending   atomic.Pointer[PendingAction]
	engine    *DialogueEngine
	handshake *Handshake
	timer     *TaskTimer

	sendCooldown  time.Duration
	cooldownTimer *clock.Timer

	hydrationGeneration uint64
	hydrated            chan struct{}
	hydratedOnce        sync.Once

	readyOnce sync.Once
	readyErr  error

	invalid     bool
	invalidErr  error
	invalidated chan struct{}
}

// New creates a Synchronizer. Nothing happens until Run.
func New(config Config) (*Synchronizer, error) {
	if config.API == nil {
		return nil, errors.New("session: API is required")
	}
	if config.Emitter == nil {
		return nil, errors.New("session: Emitter is required")
	}
	if config.Presenter == nil {
		return nil, errors.New("session: Presenter is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	general := config.GeneralOptions
	if general == nil {
		general = DefaultGeneralOptions
	}
	hintDelay := config.HintDelay
	if hintDelay <= 0 {
		hintDelay = DefaultHintDelay
	}
	sendCooldown := config.SendCooldown
	if sendCooldown <= 0 {
		sendCooldown = DefaultSendCooldown
	}

	s := &Synchronizer{
		api:          config.API,
		emitter:      config.Emitter,
		presenter:    config.Presenter,
		clock:        clk,
		logger:       logger,
		loop:         NewLoop(logger),
		ctx:          context.Background(),
		state:        newState(),
		sendCooldown: sendCooldown,
		hydrated:     make(chan struct{}),
		invalidated:  make(chan struct{}),
	}
	s.engine = newDialogueEngine(s, general, hintDelay)
	s.handshake = newHandshake(s)
	s.timer = NewTaskTimer(clk, s.post, s.renderTimer)
	s.publish()
	return s, nil
}

// Start emits ready exactly once. Run calls it; calling it earlier lets
// the caller see a failed ready before the loop starts.
func (s *Synchronizer) Start() error {
	s.readyOnce.Do(func() {
		if err := s.emitter.Emit(protocol.Ready{}); err != nil {
			s.readyErr = fmt.Errorf("session: sending ready: %w", err)
		}
	})
	return s.readyErr
}

// Run emits ready and processes events until ctx is cancelled or the
// session is invalidated, in which case it returns an error wrapping
// ErrSessionInvalid. Run must be called at most once.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.ctx = ctx
	if err := s.Start(); err != nil {
		return err
	}
	err := s.loop.Run(ctx)
	if s.invalid {
		return fmt.Errorf("%w: %v", ErrSessionInvalid, s.invalidErr)
	}
	return err
}

// Hydrated is closed once the first joined_room has been fully applied.
func (s *Synchronizer) Hydrated() <-chan struct{} { return s.hydrated }

// Invalidated is closed when the server rejects the session.
func (s *Synchronizer) Invalidated() <-chan struct{} { return s.invalidated }

// Snapshot returns a copy of the state as of the last completed task.
func (s *Synchronizer) Snapshot() State {
	return s.snapshot.Load().Clone()
}

// PendingAction returns the perform_action awaiting the wizard's
// answer, as of the last completed task.
func (s *Synchronizer) PendingAction() (PendingAction, bool) {
	pending := s.pending.Load()
	if pending == nil {
		return PendingAction{}, false
	}
	return *pending, true
}

// WaitIdle blocks until every queued event, user action and request in
// flight has been applied.
func (s *Synchronizer) WaitIdle(ctx context.Context) error {
	return s.loop.WaitIdle(ctx)
}

// HandleFrame decodes a transport frame and queues the event. Unknown
// and malformed frames are logged and dropped.
func (s *Synchronizer) HandleFrame(frame protocol.Frame) {
	event, err := frame.Decode()
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownEvent) {
			s.logger.Warn("unknown push event", "event", frame.Event)
		} else {
			s.logger.Warn("malformed push event", "event", frame.Event, "error", err)
		}
		return
	}
	s.HandleEvent(event)
}

// HandleEvent queues a decoded push event.
func (s *Synchronizer) HandleEvent(event protocol.Event) {
	s.post(func() { s.dispatch(event) })
}

// post queues a task that touches state and republishes the snapshot
// after it.
func (s *Synchronizer) post(task func()) {
	s.loop.Post(func() {
		if s.invalid {
			return
		}
		task()
		s.publish()
	})
}

func (s *Synchronizer) publish() {
	snapshot := s.state.Clone()
	s.snapshot.Store(&snapshot)
	if pending, ok := s.handshake.Pending(); ok {
		s.pending.Store(&pending)
	} else {
		s.pending.Store(nil)
	}
}

// call runs request on a helper goroutine and applies then on the loop.
// Failures are classified there: an invalid session reloads, anything
// else is logged and the operation is abandoned.
func call[T any](s *Synchronizer, operation string, request func(context.Context) (T, error), then func(T)) {
	ctx := s.ctx
	Await(s.loop, func() (T, error) { return request(ctx) }, func(value T, err error) {
		if s.invalid {
			return
		}
		if err != nil {
			s.requestFailed(operation, err)
			return
		}
		then(value)
		s.publish()
	})
}

func (s *Synchronizer) requestFailed(operation string, err error) {
	if api.IsSessionInvalid(err) {
		s.invalidate(err)
		return
	}
	s.logger.Warn("request failed", "operation", operation, "error", err)
}

// invalidate discards the session: timers stop, the presenter reloads
// and the loop ends.
func (s *Synchronizer) invalidate(cause error) {
	if s.invalid {
		return
	}
	s.invalid = true
	s.invalidErr = cause
	s.logger.Warn("session invalid, reloading", "error", cause)
	s.timer.Stop()
	s.engine.stopTimers()
	s.cooldownTimer.Stop()
	s.presenter.Reload()
	close(s.invalidated)
	s.loop.Stop()
}

func (s *Synchronizer) dispatch(event protocol.Event) {
	if joined, ok := event.(protocol.JoinedRoom); ok {
		s.hydrate(joined)
		return
	}
	if s.state.LocalUser == nil {
		s.logger.Debug("dropping event before hydration", "event", event.EventName())
		return
	}

	switch e := event.(type) {
	case protocol.LeftRoom:
	case protocol.Status:
		s.handleStatus(e)
	case protocol.RoomProperties:
		if e.ReadOnly != nil {
			s.setReadOnly(*e.ReadOnly)
		}
	case protocol.UserPermissionsUpdate:
		s.refreshPermissions()
	case protocol.StatusUpdate:
		s.handleStatusUpdate(e)
	case protocol.DialogueChoices:
		if s.state.LocalUser.Role.IsWizard() {
			s.engine.present(e)
		}
	case protocol.PerformAction:
		if s.state.LocalUser.Role.IsWizard() {
			s.handshake.presentPerformAction(e)
		}
	case protocol.InputToggle:
		s.handleInputToggle(e)
	case protocol.ChatMessage:
		s.presenter.AppendMessage(ChatLine{
			From:    e.User.Name,
			FromID:  e.User.ID,
			Text:    e.Message,
			Private: e.Private,
			Own:     s.state.isSelf(e.User.ID),
		})
	case protocol.ImageMessage:
		s.presenter.AppendMessage(ChatLine{
			From:     e.User.Name,
			FromID:   e.User.ID,
			ImageURL: e.URL,
			Private:  e.Private,
			Own:      s.state.isSelf(e.User.ID),
		})
	default:
		s.logger.Debug("ignoring outgoing event type", "event", event.EventName())
	}
}

func (s *Synchronizer) handleStatus(status protocol.Status) {
	switch status.Type {
	case protocol.StatusJoin:
		if !s.state.addPeer(status.User.ID, status.User.Name) {
			return
		}
	case protocol.StatusLeave:
		s.state.removePeer(status.User.ID)
	default:
		s.logger.Debug("ignoring status", "type", status.Type)
		return
	}
	s.presenter.SetPeers(maps.Clone(s.state.Peers))
}

func (s *Synchronizer) handleStatusUpdate(update protocol.StatusUpdate) {
	user := s.state.LocalUser

	if update.RemainingSeconds != nil {
		s.timer.Set(*update.RemainingSeconds, update.TimerRunning())
	}

	// A push without turn fields leaves the turn alone. When either field
	// is present the pair is replaced; a missing turn_user_id means
	// nobody holds the turn.
	if update.UserTurns != nil || update.TurnUserID != nil {
		turnTaking := user.TurnTakingEnabled
		if update.UserTurns != nil {
			turnTaking = *update.UserTurns
		}
		hasTurn := update.TurnUserID != nil && *update.TurnUserID == user.ID
		if user.SetTurn(turnTaking, hasTurn) {
			s.controlTurn()
		}
	}

	if update.CanFinishTask != nil {
		availability := finishAvailability(*update.CanFinishTask)
		if availability != user.CanFinishTask {
			user.CanFinishTask = availability
			s.presenter.SetFinishAvailable(availability)
		}
	}

	for _, name := range sortedKeys(update.Fields) {
		value, ok := scalarText(update.Fields[name])
		if !ok {
			continue
		}
		s.setSlot(name, value)
	}

	if update.TaskProgress != nil {
		s.presenter.SetProgress(*update.TaskProgress)
	}

	if update.Users != nil && len(s.state.Peers) < 2 {
		s.state.replacePeers(update.Users)
		s.presenter.SetPeers(maps.Clone(s.state.Peers))
	}

	if !user.Role.IsWizard() {
		if update.OperatorWait != nil {
			s.presenter.SetOperatorWait(update.OperatorWait.Reason, true)
		} else {
			s.presenter.SetOperatorWait("", false)
		}
	}
}

func (s *Synchronizer) handleInputToggle(toggle protocol.InputToggle) {
	if toggle.UserID != 0 && !s.state.isSelf(toggle.UserID) {
		return
	}
	s.state.LocalUser.InputEnabled = toggle.Enabled
	s.controlTurn()
}

// setReadOnly applies the room's read-only flag. The flag never goes
// back to false; the false to true edge closes the room.
func (s *Synchronizer) setReadOnly(readOnly bool) {
	if !readOnly {
		if s.state.RoomReadOnly {
			s.logger.Debug("ignoring read-only reset on closed room", "room", s.state.Room)
		}
		return
	}
	if s.state.RoomReadOnly {
		return
	}
	s.state.RoomReadOnly = true
	s.closeRoom()
}

func (s *Synchronizer) closeRoom() {
	s.logger.Info("room closed", "room", s.state.Room)
	if s.state.LocalUser != nil {
		s.disableComposition()
	}
	s.cooldownTimer.Stop()
	s.presenter.SetFinishEnabled(false)
	s.presenter.SetHintEnabled(false)
	s.handshake.dismiss()
	s.engine.reset()
	s.presenter.CloseRoom()
}

// applyPermissions installs the token's permissions and runs the
// composition gate.
func (s *Synchronizer) applyPermissions(token *api.Token) {
	permissions := permissionsFromToken(token)
	s.state.LocalUser.Permissions = permissions
	permitted := permissions.AllowsComposition()
	s.presenter.SetComposePermitted(permitted)
	if permitted && s.state.Room != waitingRoom {
		s.controlTurn()
	} else {
		s.disableComposition()
	}
}

func (s *Synchronizer) refreshPermissions() {
	token := s.state.LocalUser.AuthToken
	call(s, "get token", func(ctx context.Context) (*api.Token, error) {
		return s.api.GetToken(ctx, token)
	}, func(value *api.Token) {
		if s.state.LocalUser == nil {
			return
		}
		s.applyPermissions(value)
	})
}

// controlTurn re-runs the Turn Controller.
func (s *Synchronizer) controlTurn() {
	if s.state.LocalUser == nil {
		return
	}
	ControlTurn(s.state.turnInputs(), sessionComposer{s})
}

func (s *Synchronizer) disableComposition() {
	disableComposition(s.state.LocalUser.Role, sessionComposer{s})
}

// startCooldown holds wizard composition off for a moment after a
// submission, then lets the Turn Controller decide again.
func (s *Synchronizer) startCooldown() {
	s.disableComposition()
	s.cooldownTimer.Stop()
	s.cooldownTimer = s.clock.AfterFunc(s.sendCooldown, func() {
		s.post(func() {
			s.cooldownTimer = nil
			if !s.state.RoomReadOnly {
				s.controlTurn()
			}
		})
	})
}

// sessionComposer forwards composition switches to the presenter and
// keeps the dialogue engine in step for the wizard.
type sessionComposer struct{ s *Synchronizer }

func (c sessionComposer) EnableTextInput()  { c.s.presenter.EnableTextInput() }
func (c sessionComposer) DisableTextInput() { c.s.presenter.DisableTextInput() }

func (c sessionComposer) EnableDialogueOptions() {
	c.s.presenter.EnableDialogueOptions()
	c.s.engine.activate()
}

func (c sessionComposer) DisableDialogueOptions() {
	c.s.presenter.DisableDialogueOptions()
	c.s.engine.deactivate()
}

func (s *Synchronizer) renderTimer(text string) {
	s.presenter.RenderTimer(text)
	s.setSlot(timeLeftSlot, text)
}

func (s *Synchronizer) setSlot(name, value string) {
	s.engine.setSlot(name, value)
	s.presenter.SetSlot(name, value)
}

// sendChatMessage emits a chat line into the current room. The server
// echoes it back as text_message; nothing is appended locally.
func (s *Synchronizer) sendChatMessage(text string) {
	s.emit(protocol.Text{Room: s.state.Room, Message: CapitalizeMessage(text)})
}

func (s *Synchronizer) emitFinishTask() {
	s.emit(protocol.UserFinishTask{UserID: s.state.LocalUser.ID, RoomName: s.state.Room})
}

func (s *Synchronizer) emit(event protocol.Event) {
	if err := s.emitter.Emit(event); err != nil {
		if api.IsSessionInvalid(err) {
			s.invalidate(err)
			return
		}
		s.logger.Warn("emit failed", "event", event.EventName(), "error", err)
	}
}

func isTaskRoom(room string) bool {
	return strings.HasPrefix(room, taskRoomPrefix)
}

func sortedKeys(fields map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// scalarText renders a scalar JSON value for a display slot. Strings
// lose their quotes and numbers keep their wire form. Null, objects and
// arrays are not scalars.
func scalarText(raw json.RawMessage) (string, bool) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
