// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "strings"

// The methods below are the entry points for user actions. Each one is
// queued on the loop like a push event, so a click and a push that race
// are applied in arrival order.

// SubmitText sends a typed chat message. Only non-wizards type; the
// message is dropped when composition is not allowed.
func (s *Synchronizer) SubmitText(text string) {
	s.post(func() {
		user := s.state.LocalUser
		if user == nil || user.Role.IsWizard() {
			return
		}
		text = strings.TrimSpace(text)
		if text == "" || s.state.RoomReadOnly {
			return
		}
		if !user.Permissions.AllowsComposition() || !ComposeAllowed(s.state.turnInputs()) {
			s.logger.Debug("dropping message while composition is disabled")
			return
		}
		s.sendChatMessage(text)
	})
}

// SelectOption selects a dialogue option by id.
func (s *Synchronizer) SelectOption(optionID string) {
	s.wizardAction(func() { s.engine.selectOption(optionID) })
}

// OpenFreeText selects and opens the free-text answer.
func (s *Synchronizer) OpenFreeText() {
	s.wizardAction(s.engine.openFreeText)
}

// UpdateFreeText records what the wizard typed into the free-text
// answer.
func (s *Synchronizer) UpdateFreeText(text string) {
	s.wizardAction(func() { s.engine.updateFreeText(text) })
}

// SubmitSelection sends the selected option. Without turn taking the
// wizard's options are held off for the send cooldown afterwards.
func (s *Synchronizer) SubmitSelection() {
	s.wizardAction(func() {
		if s.state.RoomReadOnly || !ComposeAllowed(s.state.turnInputs()) {
			s.logger.Debug("dropping submission while composition is disabled")
			return
		}
		if !s.engine.submit() {
			return
		}
		if !s.state.LocalUser.TurnTakingEnabled {
			s.startCooldown()
		}
	})
}

// RequestHint asks the server which option to pick.
func (s *Synchronizer) RequestHint() {
	s.wizardAction(func() {
		if !s.state.RoomReadOnly {
			s.engine.requestHint()
		}
	})
}

// ReloadDialogueChoices fetches the current option set again.
func (s *Synchronizer) ReloadDialogueChoices() {
	s.wizardAction(func() {
		if !s.state.RoomReadOnly {
			s.engine.fetch()
		}
	})
}

// RequestFinishTask opens the finish-task confirmation.
func (s *Synchronizer) RequestFinishTask() {
	s.post(func() {
		if s.state.LocalUser == nil || s.state.RoomReadOnly {
			return
		}
		s.handshake.presentFinishTask(s.state.LocalUser.CanFinishTask)
	})
}

// Confirm answers the open dialog with its confirm button.
func (s *Synchronizer) Confirm() { s.post(s.handshake.confirm) }

// Cancel answers the open dialog with its cancel button.
func (s *Synchronizer) Cancel() { s.post(s.handshake.cancel) }

// Dismiss closes the open dialog; it counts as a cancel.
func (s *Synchronizer) Dismiss() { s.post(s.handshake.dismiss) }

func (s *Synchronizer) wizardAction(action func()) {
	s.post(func() {
		if s.state.LocalUser == nil || !s.state.LocalUser.Role.IsWizard() {
			return
		}
		action()
	})
}
