// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"maps"

	"github.com/crwiz-project/crwiz/api"
)

// Role is the local user's role in the room.
type Role int

const (
	RolePlain    Role = api.RolePlain
	RoleOperator Role = api.RoleOperator
	RoleWizard   Role = api.RoleWizard
)

func (r Role) String() string {
	switch r {
	case RolePlain:
		return "plain"
	case RoleOperator:
		return "operator"
	case RoleWizard:
		return "wizard"
	default:
		return "unknown"
	}
}

// IsWizard reports whether the role drives the dialogue options.
func (r Role) IsWizard() bool { return r == RoleWizard }

// FinishAvailability is the tri-state "can finish task" flag.
type FinishAvailability int

const (
	FinishUnknown FinishAvailability = iota
	FinishNo
	FinishYes
)

func finishAvailability(canFinish bool) FinishAvailability {
	if canFinish {
		return FinishYes
	}
	return FinishNo
}

// Permissions are the message permissions of the local user's token.
type Permissions struct {
	Text    bool
	Image   bool
	Command bool
}

// AllowsComposition reports whether any outgoing message may be
// composed at all.
func (p Permissions) AllowsComposition() bool {
	return p.Text || p.Image || p.Command
}

func permissionsFromToken(token *api.Token) Permissions {
	message := token.Permissions.Message
	return Permissions{Text: message.Text, Image: message.Image, Command: message.Command}
}

// LocalUser is the identity and capabilities of this client.
type LocalUser struct {
	ID          int
	DisplayName string
	Role        Role
	AuthToken   string

	TurnTakingEnabled bool
	HasCurrentTurn    bool
	InputEnabled      bool

	CanFinishTask FinishAvailability
	Permissions   Permissions
}

// newLocalUser builds the freshly hydrated user. Turn taking starts
// enabled without the turn; the first status push corrects both.
func newLocalUser(user *api.User) *LocalUser {
	return &LocalUser{
		ID:                user.ID,
		DisplayName:       user.Name,
		Role:              Role(user.RoleID),
		AuthToken:         user.Token,
		TurnTakingEnabled: true,
		HasCurrentTurn:    false,
		InputEnabled:      true,
	}
}

// SetTurn updates both turn fields together and reports whether either
// changed.
func (u *LocalUser) SetTurn(turnTakingEnabled, hasCurrentTurn bool) bool {
	changed := u.TurnTakingEnabled != turnTakingEnabled || u.HasCurrentTurn != hasCurrentTurn
	u.TurnTakingEnabled = turnTakingEnabled
	u.HasCurrentTurn = hasCurrentTurn
	return changed
}

// State is the local view of the session. The Synchronizer is its only
// writer; everything else sees copies from Synchronizer.Snapshot.
//
// Invariant: LocalUser.ID is never a key of Peers.
type State struct {
	// Room is empty until the first joined_room.
	Room string
	// RoomReadOnly never reverts to false once set.
	RoomReadOnly bool
	// LocalUser is nil until hydration resolves the user.
	LocalUser *LocalUser
	Peers     map[int]string
}

func newState() *State {
	return &State{Peers: map[int]string{}}
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	clone := State{
		Room:         s.Room,
		RoomReadOnly: s.RoomReadOnly,
		Peers:        maps.Clone(s.Peers),
	}
	if clone.Peers == nil {
		clone.Peers = map[int]string{}
	}
	if s.LocalUser != nil {
		user := *s.LocalUser
		clone.LocalUser = &user
	}
	return clone
}

func (s *State) isSelf(userID int) bool {
	return s.LocalUser != nil && s.LocalUser.ID == userID
}

// addPeer inserts a peer and reports whether it was accepted. The local
// user is never a peer.
func (s *State) addPeer(userID int, name string) bool {
	if s.isSelf(userID) {
		return false
	}
	s.Peers[userID] = name
	return true
}

func (s *State) removePeer(userID int) {
	delete(s.Peers, userID)
}

// replacePeers swaps in a new roster wholesale, dropping the local user.
func (s *State) replacePeers(roster map[int]string) {
	peers := make(map[int]string, len(roster))
	for userID, name := range roster {
		if !s.isSelf(userID) {
			peers[userID] = name
		}
	}
	s.Peers = peers
}

// replaceLocalUser swaps in a new local user and keeps the peer
// invariant.
func (s *State) replaceLocalUser(user *LocalUser) {
	s.LocalUser = user
	if user != nil {
		delete(s.Peers, user.ID)
	}
}

// turnInputs collects the Turn Controller's inputs. It must only be
// called with a hydrated local user.
func (s *State) turnInputs() TurnInputs {
	return TurnInputs{
		RoomReadOnly:      s.RoomReadOnly,
		TurnTakingEnabled: s.LocalUser.TurnTakingEnabled,
		HasCurrentTurn:    s.LocalUser.HasCurrentTurn,
		InputEnabled:      s.LocalUser.InputEnabled,
		Role:              s.LocalUser.Role,
	}
}
