// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"maps"
	"slices"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/session"
)

// Sender delivers messages into a running bubbletea program.
// *tea.Program satisfies it.
type Sender interface {
	Send(message tea.Msg)
}

// Presenter implements session.Presenter on top of a bubbletea
// program. Every call becomes one message; values that the session
// keeps mutating are copied first.
type Presenter struct {
	program Sender
}

var _ session.Presenter = (*Presenter)(nil)

// NewPresenter returns a Presenter that sends to program.
func NewPresenter(program Sender) *Presenter {
	return &Presenter{program: program}
}

// Messages sent by Presenter. The model applies each one in Update.
type (
	textInputMsg       struct{ enabled bool }
	optionsMsg         struct{ enabled bool }
	peersMsg           struct{ peers map[int]string }
	roomMsg            struct{ room session.RoomView }
	layoutMsg          struct{ layout api.Layout }
	roleLayoutMsg      struct{ layout session.RoleLayout }
	historyMsg         struct{ lines []session.ChatLine }
	chatLineMsg        struct{ line session.ChatLine }
	composeMsg         struct{ permitted bool }
	choicesMsg         struct{ view session.ChoiceView }
	hintMsg            struct{ enabled bool }
	flashMsg           struct{ optionID string }
	finishAvailableMsg struct{ availability session.FinishAvailability }
	finishEnabledMsg   struct{ enabled bool }
	timerMsg           struct{ text string }
	slotMsg            struct{ name, value string }
	progressMsg        struct{ percent float64 }
	confirmationMsg    struct{ prompt *session.Prompt }
	closeRoomMsg       struct{}
	reloadMsg          struct{}
)

type operatorWaitMsg struct {
	reason  string
	waiting bool
}

func (p *Presenter) EnableTextInput()        { p.program.Send(textInputMsg{enabled: true}) }
func (p *Presenter) DisableTextInput()       { p.program.Send(textInputMsg{enabled: false}) }
func (p *Presenter) EnableDialogueOptions()  { p.program.Send(optionsMsg{enabled: true}) }
func (p *Presenter) DisableDialogueOptions() { p.program.Send(optionsMsg{enabled: false}) }

func (p *Presenter) SetPeers(peers map[int]string) {
	p.program.Send(peersMsg{peers: maps.Clone(peers)})
}

func (p *Presenter) ApplyRoom(room session.RoomView) { p.program.Send(roomMsg{room: room}) }

func (p *Presenter) ApplyLayout(layout api.Layout) { p.program.Send(layoutMsg{layout: layout}) }

func (p *Presenter) ApplyRoleLayout(layout session.RoleLayout) {
	layout.GeneralOptions = slices.Clone(layout.GeneralOptions)
	p.program.Send(roleLayoutMsg{layout: layout})
}

// ShowHistory converts the log entries to chat lines up front so the
// model only ever deals with one line type.
func (p *Presenter) ShowHistory(entries []api.LogEntry) {
	lines := make([]session.ChatLine, 0, len(entries))
	for _, entry := range entries {
		if line, ok := historyLine(entry); ok {
			lines = append(lines, line)
		}
	}
	p.program.Send(historyMsg{lines: lines})
}

func (p *Presenter) AppendMessage(line session.ChatLine) { p.program.Send(chatLineMsg{line: line}) }

func (p *Presenter) SetComposePermitted(permitted bool) {
	p.program.Send(composeMsg{permitted: permitted})
}

func (p *Presenter) SetOperatorWait(reason string, waiting bool) {
	p.program.Send(operatorWaitMsg{reason: reason, waiting: waiting})
}

func (p *Presenter) ShowChoices(view session.ChoiceView) {
	view.Options = slices.Clone(view.Options)
	p.program.Send(choicesMsg{view: view})
}

func (p *Presenter) SetHintEnabled(enabled bool) { p.program.Send(hintMsg{enabled: enabled}) }

func (p *Presenter) FlashOption(optionID string) { p.program.Send(flashMsg{optionID: optionID}) }

func (p *Presenter) SetFinishAvailable(availability session.FinishAvailability) {
	p.program.Send(finishAvailableMsg{availability: availability})
}

func (p *Presenter) SetFinishEnabled(enabled bool) { p.program.Send(finishEnabledMsg{enabled: enabled}) }

func (p *Presenter) RenderTimer(text string) { p.program.Send(timerMsg{text: text}) }

func (p *Presenter) SetSlot(name, value string) { p.program.Send(slotMsg{name: name, value: value}) }

func (p *Presenter) SetProgress(percent float64) { p.program.Send(progressMsg{percent: percent}) }

func (p *Presenter) ShowConfirmation(prompt session.Prompt) {
	p.program.Send(confirmationMsg{prompt: &prompt})
}

func (p *Presenter) HideConfirmation() { p.program.Send(confirmationMsg{}) }

func (p *Presenter) CloseRoom() { p.program.Send(closeRoomMsg{}) }

func (p *Presenter) Reload() { p.program.Send(reloadMsg{}) }
