// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"sync"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/protocol"
)

const (
	defaultActionTitle = "Action"
	defaultActionBody  = "We think that you may want to perform the following action. " +
		"Please select one option depending on what the operator instructed."
)

var (
	finishAvailablePrompt = Prompt{
		Title:        "Finish Game",
		Body: "You can now finish the game by confirming below. " +
			"The HelperBot will provide you with a code in the chat to submit to the survey. " +
			"Please note that you will only be given the bonus if you completed all the objectives successfully.",
		ConfirmLabel: "Finish Game",
		CancelLabel:  "Keep Playing",
	}
	finishUnavailablePrompt = Prompt{
		Title: "Finish Game",
		Body: "Hmmm... It looks like you haven't spent enough time playing. " +
			"Play a bit longer before finishing the game!",
		CancelLabel: "Keep Playing",
	}
)

// Prompt is the content of a confirm/cancel dialog. An empty label
// means the button is not offered.
type Prompt struct {
	Title        string
	Body         string
	ConfirmLabel string
	CancelLabel  string
}

// Presentation is one open dialog. Exactly one of its callbacks fires,
// at most once; a presentation superseded by a newer one fires none.
type Presentation struct {
	prompt    Prompt
	once      sync.Once
	onConfirm func()
	onCancel  func()
}

// Prompt returns what the dialog shows.
func (p *Presentation) Prompt() Prompt { return p.prompt }

func (p *Presentation) resolve(confirmed bool) {
	p.once.Do(func() {
		callback := p.onCancel
		if confirmed {
			callback = p.onConfirm
		}
		if callback != nil {
			callback()
		}
	})
}

// retire consumes the presentation without firing anything.
func (p *Presentation) retire() {
	p.once.Do(func() {})
}

// PendingAction is the perform_action waiting for the wizard's answer.
type PendingAction struct {
	ActionName       string
	FrontendCallback *protocol.FrontendCallback
}

// Handshake runs the confirm/cancel dialogs: perform_action for the
// wizard and the finish-task confirmation for everyone. At most one
// dialog is open. All methods run on the loop goroutine.
type Handshake struct {
	s       *Synchronizer
	current *Presentation
	pending *PendingAction
}

func newHandshake(s *Synchronizer) *Handshake {
	return &Handshake{s: s}
}

// Current returns the open presentation, or nil.
func (h *Handshake) Current() *Presentation { return h.current }

// Pending returns a copy of the pending action, if any.
func (h *Handshake) Pending() (PendingAction, bool) {
	if h.pending == nil {
		return PendingAction{}, false
	}
	return *h.pending, true
}

// present opens a dialog, superseding any open one.
func (h *Handshake) present(prompt Prompt, onConfirm, onCancel func()) *Presentation {
	if h.current != nil {
		h.current.retire()
	}
	h.pending = nil
	presentation := &Presentation{prompt: prompt, onConfirm: onConfirm, onCancel: onCancel}
	h.current = presentation
	h.s.presenter.ShowConfirmation(prompt)
	return presentation
}

// confirm answers the open dialog positively. Ignored when the dialog
// offers no confirm button.
func (h *Handshake) confirm() {
	if h.current == nil || h.current.prompt.ConfirmLabel == "" {
		return
	}
	h.answer(true)
}

// cancel answers the open dialog negatively. Ignored when the dialog
// offers no cancel button.
func (h *Handshake) cancel() {
	if h.current == nil || h.current.prompt.CancelLabel == "" {
		return
	}
	h.answer(false)
}

// dismiss closes the open dialog; the cancel callback fires.
func (h *Handshake) dismiss() {
	if h.current == nil {
		return
	}
	h.answer(false)
}

func (h *Handshake) answer(confirmed bool) {
	presentation := h.current
	h.current = nil
	h.s.presenter.HideConfirmation()
	presentation.resolve(confirmed)
}

// presentPerformAction asks the wizard whether the operator's action
// was performed and reports the answer.
func (h *Handshake) presentPerformAction(push protocol.PerformAction) {
	prompt := Prompt{
		Title:        push.Title,
		Body:         push.Body,
		ConfirmLabel: push.ConfirmLabel,
		CancelLabel:  push.CancelLabel,
	}
	if prompt.Title == "" {
		prompt.Title = defaultActionTitle
	}
	if prompt.Body == "" {
		prompt.Body = defaultActionBody
	}
	action := &PendingAction{ActionName: push.ActionName, FrontendCallback: push.FrontendCallback}
	h.present(prompt,
		func() { h.submitPerformAction(action, true) },
		func() { h.submitPerformAction(action, false) },
	)
	h.pending = action
}

func (h *Handshake) submitPerformAction(action *PendingAction, result bool) {
	if h.pending == action {
		h.pending = nil
	}
	userID := h.s.state.LocalUser.ID
	request := api.PerformActionRequest{ActionName: action.ActionName, Result: result}
	call(h.s, "submit perform action", func(ctx context.Context) (*api.PerformActionResponse, error) {
		return h.s.api.SubmitPerformAction(ctx, userID, request)
	}, func(response *api.PerformActionResponse) {
		callback := action.FrontendCallback
		if response.FrontendCallback != nil {
			callback = response.FrontendCallback
		}
		target, ok := callback.AutomaticStateTransition(result)
		if !ok {
			return
		}
		branch, _ := callback.Branch(result)
		h.s.engine.autoTransition(target, choiceElements(branch))
	})
}

// presentFinishTask opens the finish-task confirmation. Confirming
// emits user_finish_task; when finishing is not yet allowed only a
// cancel button is offered.
func (h *Handshake) presentFinishTask(availability FinishAvailability) {
	if availability != FinishYes {
		h.present(finishUnavailablePrompt, nil, nil)
		return
	}
	h.present(finishAvailablePrompt, h.s.emitFinishTask, nil)
}
