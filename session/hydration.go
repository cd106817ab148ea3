// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"maps"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/protocol"
)

// future is a request already in flight whose result is applied later.
type future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func startFuture[T any](l *Loop, request func() (T, error)) *future[T] {
	f := &future[T]{done: make(chan struct{})}
	l.Go(func() {
		f.value, f.err = request()
		close(f.done)
	})
	return f
}

// awaitFuture posts then onto the loop once f resolves.
func awaitFuture[T any](l *Loop, f *future[T], then func(T, error)) {
	l.Go(func() {
		<-f.done
		l.Post(func() { then(f.value, f.err) })
	})
}

// hydration is one joined_room in progress. The room, user, layout and
// history requests start together; their results are applied strictly
// in that order, followed by the permissions token, which needs the
// user. A newer joined_room makes an older hydration stale; its
// remaining steps are dropped.
type hydration struct {
	s          *Synchronizer
	generation uint64
	joined     protocol.JoinedRoom

	room    *future[*api.Room]
	user    *future[*api.User]
	layout  *future[*api.Layout]
	history *future[api.History]
	token   *future[*api.Token]

	roomInfo *api.Room
}

func (s *Synchronizer) hydrate(joined protocol.JoinedRoom) {
	s.hydrationGeneration++
	s.logger.Info("joined room", "room", joined.Room, "user_id", joined.User)
	if s.state.Room != "" && s.state.Room != joined.Room {
		// Read-only is per room; a different room starts from scratch.
		s.handshake.dismiss()
		s.engine.reset()
		s.cooldownTimer.Stop()
		s.timer.Stop()
		s.state = newState()
	}
	s.state.Room = joined.Room

	ctx := s.ctx
	h := &hydration{
		s:          s,
		generation: s.hydrationGeneration,
		joined:     joined,
	}
	h.room = startFuture(s.loop, func() (*api.Room, error) { return s.api.GetRoom(ctx, joined.Room) })
	h.user = startFuture(s.loop, func() (*api.User, error) { return s.api.GetUser(ctx, joined.User) })
	h.layout = startFuture(s.loop, func() (*api.Layout, error) { return s.api.GetRoomLayout(ctx, joined.Room) })
	h.history = startFuture(s.loop, func() (api.History, error) { return s.api.GetUserLogs(ctx, joined.User) })

	hydrationStep(h, "get room", h.room, h.applyRoom)
}

// hydrationStep applies one resolved request if the hydration is still
// current.
func hydrationStep[T any](h *hydration, operation string, f *future[T], then func(T)) {
	s := h.s
	awaitFuture(s.loop, f, func(value T, err error) {
		if s.invalid || h.generation != s.hydrationGeneration {
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

func (h *hydration) applyRoom(room *api.Room) {
	s := h.s
	h.roomInfo = room
	s.setReadOnly(room.ReadOnly)
	s.presenter.ApplyRoom(RoomView{
		Name:        h.joined.Room,
		Label:       room.Label,
		ShowUsers:   room.ShowUsers,
		ShowLatency: room.ShowLatency,
	})
	hydrationStep(h, "get user", h.user, h.applyUser)
}

func (h *hydration) applyUser(user *api.User) {
	s := h.s
	if user.ID == 0 {
		user.ID = h.joined.User
	}
	ctx := s.ctx
	authToken := user.Token
	h.token = startFuture(s.loop, func() (*api.Token, error) { return s.api.GetToken(ctx, authToken) })

	s.state.replaceLocalUser(newLocalUser(user))
	occupants, err := h.roomInfo.Occupants()
	if err != nil {
		s.logger.Warn("ignoring malformed room roster", "room", h.joined.Room, "error", err)
		occupants = map[int]string{}
	}
	s.state.replacePeers(occupants)
	s.presenter.SetPeers(maps.Clone(s.state.Peers))
	hydrationStep(h, "get room layout", h.layout, h.applyLayout)
}

func (h *hydration) applyLayout(layout *api.Layout) {
	h.s.presenter.ApplyLayout(*layout)
	h.s.initialiseRole()
	hydrationStep(h, "get user logs", h.history, h.applyHistory)
}

func (h *hydration) applyHistory(history api.History) {
	s := h.s
	if _, ok := history[h.joined.Room]; !ok {
		ctx := s.ctx
		userID := h.joined.User
		retry := startFuture(s.loop, func() (api.History, error) { return s.api.GetUserLogs(ctx, userID) })
		hydrationStep(h, "get user logs", retry, h.showHistory)
		return
	}
	h.showHistory(history)
}

func (h *hydration) showHistory(history api.History) {
	var entries []api.LogEntry
	for _, entry := range history[h.joined.Room] {
		if entry.IsChat() {
			entries = append(entries, entry)
		}
	}
	h.s.presenter.ShowHistory(entries)
	hydrationStep(h, "get token", h.token, h.applyToken)
}

func (h *hydration) applyToken(token *api.Token) {
	s := h.s
	s.applyPermissions(token)
	s.hydratedOnce.Do(func() { close(s.hydrated) })
	s.logger.Debug("session hydrated", "room", h.joined.Room, "role", s.state.LocalUser.Role)
}

// initialiseRole arranges the screen for the local user's role once the
// layout is in place.
func (s *Synchronizer) initialiseRole() {
	user := s.state.LocalUser
	taskRoom := isTaskRoom(s.state.Room) && !s.state.RoomReadOnly
	layout := RoleLayout{Role: user.Role, TaskRoom: taskRoom}
	if taskRoom && user.Role.IsWizard() {
		layout.GeneralOptions = s.engine.generalOptions()
	}
	s.presenter.ApplyRoleLayout(layout)
	if !taskRoom {
		s.disableComposition()
	}
	if user.Role.IsWizard() && s.state.Room != waitingRoom {
		s.engine.initialise()
	}
}
