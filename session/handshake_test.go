// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/protocol"
)

func TestPresentationResolvesOnce(t *testing.T) {
	var confirms, cancels int
	presentation := &Presentation{
		onConfirm: func() { confirms++ },
		onCancel:  func() { cancels++ },
	}
	presentation.resolve(true)
	presentation.resolve(false)
	presentation.resolve(true)
	if confirms != 1 || cancels != 0 {
		t.Errorf("confirms %d cancels %d, want 1 and 0", confirms, cancels)
	}

	retired := &Presentation{
		onConfirm: func() { confirms++ },
		onCancel:  func() { cancels++ },
	}
	retired.retire()
	retired.resolve(false)
	if confirms != 1 || cancels != 0 {
		t.Errorf("retired presentation fired: confirms %d cancels %d", confirms, cancels)
	}
}

func transition(target string) map[string]json.RawMessage {
	return map[string]json.RawMessage{"automatic_state_transition": raw(`"` + target + `"`)}
}

func performAction(name string, callback *protocol.FrontendCallback) protocol.PerformAction {
	return protocol.PerformAction{
		ActionName:       name,
		ConfirmLabel:     "Done",
		CancelLabel:      "Not done",
		FrontendCallback: callback,
	}
}

func (f *fakeAPI) performed() []api.PerformActionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.actions)
}

func TestPerformActionChainsStateTransition(t *testing.T) {
	h := newWizard(t)
	h.push(choiceSet(false, protocol.ChoiceElement{
		StateName:   "extinguish_state",
		UtteranceID: "extinguish_1",
		Utterance:   "Extinguishing the fire now",
	}))
	h.advance(DefaultHintDelay)
	h.push(performAction("extinguish", &protocol.FrontendCallback{OnConfirm: transition("extinguish")}))

	h.presenter.snapshot(func(p *recordingPresenter) {
		prompt := p.prompts[len(p.prompts)-1]
		if prompt.Title != defaultActionTitle || prompt.Body != defaultActionBody || prompt.ConfirmLabel != "Done" {
			t.Errorf("prompt = %+v", prompt)
		}
	})
	if pending, ok := h.sync.PendingAction(); !ok || pending.ActionName != "extinguish" {
		t.Fatalf("pending action = %+v, %v", pending, ok)
	}

	h.sync.Confirm()
	h.settle()

	if actions := h.api.performed(); !slices.Equal(actions, []api.PerformActionRequest{{ActionName: "extinguish", Result: true}}) {
		t.Errorf("actions = %+v", actions)
	}
	want := api.SubmitChoiceRequest{Text: "Extinguishing the fire now", StateName: "extinguish_state"}
	if submissions := h.api.submitted(); len(submissions) != 1 || submissions[0] != want {
		t.Errorf("submissions = %+v, want %+v", submissions, want)
	}
	if texts := h.emitter.texts(); !slices.Equal(texts, []string{"Extinguishing the fire now"}) {
		t.Errorf("texts = %q", texts)
	}
	if _, ok := h.sync.PendingAction(); ok {
		t.Error("pending action left after the answer")
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.hintEnabled {
			t.Error("hint still enabled after the automatic submission")
		}
	})
}

func TestStateTransitionWithoutUtteranceSendsNothing(t *testing.T) {
	h := newWizard(t)
	h.push(performAction("wait", &protocol.FrontendCallback{OnConfirm: map[string]json.RawMessage{
		"automatic_state_transition": raw(`"blank"`),
		"choice_selection":           raw(`{"elements":[{"utterance":"  ","utterance_id":"blank_1"}]}`),
	}}))
	h.sync.Confirm()
	h.settle()

	if actions := h.api.performed(); len(actions) != 1 || !actions[0].Result {
		t.Errorf("actions = %+v", actions)
	}
	if submissions := h.api.submitted(); len(submissions) != 0 {
		t.Errorf("submissions = %+v, want none", submissions)
	}
	if texts := h.emitter.texts(); len(texts) != 0 {
		t.Errorf("texts = %q, want none", texts)
	}
}

func TestPerformActionResponseCallbackWins(t *testing.T) {
	h := newWizard(t)
	h.api.mu.Lock()
	h.api.actionResponse = api.PerformActionResponse{FrontendCallback: &protocol.FrontendCallback{
		OnCancel: map[string]json.RawMessage{
			"automatic_state_transition": raw(`"abort"`),
			"choice_selection":           raw(`{"elements":[{"utterance":"Aborting the mission","utterance_id":"abort_2"}]}`),
		},
	}}
	h.api.mu.Unlock()

	h.push(performAction("launch", &protocol.FrontendCallback{OnCancel: transition("ignored")}))
	h.sync.Cancel()
	h.settle()

	if actions := h.api.performed(); len(actions) != 1 || actions[0].Result {
		t.Errorf("actions = %+v", actions)
	}
	want := api.SubmitChoiceRequest{Text: "Aborting the mission", StateName: "abort_2"}
	if submissions := h.api.submitted(); len(submissions) != 1 || submissions[0] != want {
		t.Errorf("submissions = %+v, want %+v", submissions, want)
	}
}

func TestPerformActionWithoutMatchingOption(t *testing.T) {
	h := newWizard(t)
	h.push(choiceSet(false, protocol.ChoiceElement{StateName: "other", UtteranceID: "other_1", Utterance: "Other"}))
	h.push(performAction("extinguish", &protocol.FrontendCallback{OnConfirm: transition("extinguish")}))
	h.sync.Confirm()
	h.settle()
	if submissions := h.api.submitted(); len(submissions) != 0 {
		t.Errorf("submitted %+v without a matching option", submissions)
	}
}

func TestNewerPresentationSupersedes(t *testing.T) {
	h := newWizard(t)
	h.push(performAction("first", nil), performAction("second", nil))
	h.sync.Confirm()
	h.sync.Confirm()
	h.settle()

	if actions := h.api.performed(); !slices.Equal(actions, []api.PerformActionRequest{{ActionName: "second", Result: true}}) {
		t.Errorf("actions = %+v, want only the second", actions)
	}
}

func TestDismissCountsAsCancel(t *testing.T) {
	h := newWizard(t)
	h.push(performAction("dig", nil))
	h.sync.Dismiss()
	h.sync.Dismiss()
	h.settle()
	if actions := h.api.performed(); !slices.Equal(actions, []api.PerformActionRequest{{ActionName: "dig", Result: false}}) {
		t.Errorf("actions = %+v", actions)
	}
}

func TestRoomClosureDismissesAction(t *testing.T) {
	h := newWizard(t)
	h.push(choiceSet(false, protocol.ChoiceElement{StateName: "s", UtteranceID: "wait_1", Utterance: "Waiting"}))
	h.push(performAction("wait", &protocol.FrontendCallback{OnCancel: transition("wait")}))
	h.push(protocol.RoomProperties{ReadOnly: boolPtr(true)})

	if actions := h.api.performed(); !slices.Equal(actions, []api.PerformActionRequest{{ActionName: "wait", Result: false}}) {
		t.Errorf("actions = %+v", actions)
	}
	if submissions := h.api.submitted(); len(submissions) != 0 {
		t.Errorf("closed room chained a transition: %+v", submissions)
	}
	h.presenter.snapshot(func(p *recordingPresenter) {
		if p.promptOpen {
			t.Error("dialog left open in a closed room")
		}
	})
}

func TestPerformActionIgnoredForNonWizard(t *testing.T) {
	h := newHarness(t, newFakeAPI(api.RoleOperator))
	h.join()
	h.push(performAction("dig", nil))
	if n := h.presenter.count("ShowConfirmation"); n != 0 {
		t.Errorf("ShowConfirmation called %d times for an operator", n)
	}
}
