// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/crwiz-project/crwiz/api"
)

// Presenter renders session state. The session calls it only from the
// loop goroutine; implementations that draw elsewhere must hand the
// calls over themselves. User actions come back through the
// Synchronizer's methods (SubmitText, SelectOption, Confirm, ...).
type Presenter interface {
	Composer

	// SetPeers renders the other occupants of the room.
	SetPeers(peers map[int]string)
	// ApplyRoom renders room-level presentation flags.
	ApplyRoom(room RoomView)
	// ApplyLayout installs the room's layout.
	ApplyLayout(layout api.Layout)
	// ApplyRoleLayout arranges the screen for the local user's role.
	ApplyRoleLayout(layout RoleLayout)
	// ShowHistory renders the chat history of the room.
	ShowHistory(entries []api.LogEntry)
	// AppendMessage renders one inbound chat line.
	AppendMessage(line ChatLine)
	// SetComposePermitted reflects whether the token may send messages
	// at all.
	SetComposePermitted(permitted bool)
	// SetOperatorWait holds (waiting) or releases non-wizard input while
	// the wizard has not started the conversation.
	SetOperatorWait(reason string, waiting bool)

	// ShowChoices renders the wizard's option list and selection.
	ShowChoices(view ChoiceView)
	// SetHintEnabled toggles the hint affordance.
	SetHintEnabled(enabled bool)
	// FlashOption highlights the option with the given id.
	FlashOption(optionID string)

	// SetFinishAvailable styles the finish-task affordance.
	SetFinishAvailable(availability FinishAvailability)
	// SetFinishEnabled toggles the finish-task affordance.
	SetFinishEnabled(enabled bool)
	// RenderTimer shows the task countdown, formatted m:ss.
	RenderTimer(text string)
	// SetSlot fills the display slot named after a status field.
	SetSlot(name, value string)
	// SetProgress renders the task progress in percent.
	SetProgress(percent float64)

	// ShowConfirmation opens the confirm/cancel dialog. The answer comes
	// back through Synchronizer.Confirm, Cancel or Dismiss.
	ShowConfirmation(prompt Prompt)
	// HideConfirmation closes the dialog without an answer.
	HideConfirmation()

	// CloseRoom renders the room as closed.
	CloseRoom()
	// Reload discards everything; the session is gone and must be
	// rebuilt from scratch.
	Reload()
}

// RoomView carries the room-level presentation flags.
type RoomView struct {
	Name        string
	Label       string
	ShowUsers   bool
	ShowLatency bool
}

// RoleLayout describes how to arrange the screen for a role.
type RoleLayout struct {
	Role Role
	// TaskRoom is false for the waiting room and other non-task rooms,
	// and for closed task rooms; they get no composition area.
	TaskRoom bool
	// GeneralOptions are the wizard's static options, rendered once.
	GeneralOptions []DialogueOption
}

// ChatLine is one chat message.
type ChatLine struct {
	From     string
	FromID   int
	Text     string
	ImageURL string
	Private  bool
	// Own marks messages sent by the local user.
	Own bool
}

// ChoiceView is the wizard's option list as it should be drawn.
type ChoiceView struct {
	// Prompt is shown above the list.
	Prompt string
	// Options are the visible options, general ones first.
	Options []DialogueOption
	// SelectedID is the selected option's ID, FreeTextOptionID, or empty.
	SelectedID    string
	AllowFreeText bool
	FreeTextOpen  bool
	FreeText      string
}
