// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/session"
)

// Actions are the user actions the model forwards to the session.
// *session.Synchronizer satisfies it.
type Actions interface {
	SubmitText(text string)
	SelectOption(optionID string)
	OpenFreeText()
	UpdateFreeText(text string)
	SubmitSelection()
	RequestHint()
	ReloadDialogueChoices()
	RequestFinishTask()
	Confirm()
	Cancel()
	Dismiss()
}

// Focus identifies where keystrokes go.
type Focus int

const (
	// FocusInput sends keystrokes to the compose line.
	FocusInput Focus = iota
	// FocusOptions moves the cursor over the wizard's option list.
	FocusOptions
)

// flashDuration is how long a hinted option stays highlighted.
const flashDuration = 2 * time.Second

// flashFadeMsg ends the highlight started by a flashMsg.
type flashFadeMsg struct{ sequence uint64 }

// attachMsg replaces the model's Actions after a session was rebuilt.
type attachMsg struct{ actions Actions }

// Attach returns a message that points the model at a new session and
// clears what the previous one rendered.
func Attach(actions Actions) tea.Msg {
	return attachMsg{actions: actions}
}

// Model is the bubbletea model of the chat UI.
type Model struct {
	actions Actions
	theme   Theme
	keys    KeyMap

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	chat  viewport.Model
	lines []session.ChatLine
	input textinput.Model
	focus Focus

	room      session.RoomView
	layout    api.Layout
	role      session.RoleLayout
	roleKnown bool
	peers     map[int]string

	textEnabled      bool
	optionsEnabled   bool
	composePermitted bool
	waiting          bool
	waitReason       string

	choices       session.ChoiceView
	haveChoices   bool
	cursor        int
	hintEnabled   bool
	flashID       string
	flashSequence uint64
	slots         map[string]string

	finishAvailability session.FinishAvailability
	finishEnabled      bool
	timer              string
	progress           float64
	haveProgress       bool

	prompt    *session.Prompt
	closed    bool
	reloading bool

	status         string
	statusLevel    slog.Level
	statusSequence uint64
}

// NewModel creates a model that forwards user actions to actions.
func NewModel(actions Actions) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message"
	return Model{
		actions: actions,
		theme:   DefaultTheme,
		keys:    DefaultKeyMap,
		chat:    viewport.New(0, 0),
		input:   input,
		peers:   map[int]string{},
		slots:   map[string]string{},
	}
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return textinput.Blink
}

// Focus returns where keystrokes currently go.
func (model Model) Focus() Focus { return model.focus }

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.resize()

	case attachMsg:
		fresh := NewModel(message.actions)
		fresh.theme, fresh.keys = model.theme, model.keys
		fresh.width, fresh.height, fresh.ready = model.width, model.height, model.ready
		fresh.resize()
		return fresh, nil

	case logRecordMsg:
		model.statusSequence++
		model.status = message.Summary
		model.statusLevel = message.Level
		sequence := model.statusSequence
		return model, tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
			return logRecordFadeMsg{sequence: sequence}
		})

	case logRecordFadeMsg:
		if message.sequence == model.statusSequence {
			model.status = ""
		}

	case flashFadeMsg:
		if message.sequence == model.flashSequence {
			model.flashID = ""
		}

	case flashMsg:
		model.flashSequence++
		model.flashID = message.optionID
		sequence := model.flashSequence
		return model, tea.Tick(flashDuration, func(time.Time) tea.Msg {
			return flashFadeMsg{sequence: sequence}
		})

	default:
		if model.apply(message) {
			cmd := model.syncInput()
			return model, cmd
		}
		var cmd tea.Cmd
		model.input, cmd = model.input.Update(message)
		return model, cmd
	}
	return model, nil
}

// apply handles the presenter's state messages and reports whether the
// message was one of them.
func (model *Model) apply(message tea.Msg) bool {
	switch message := message.(type) {
	case textInputMsg:
		model.textEnabled = message.enabled
	case optionsMsg:
		model.optionsEnabled = message.enabled
	case peersMsg:
		model.peers = message.peers
	case roomMsg:
		model.room = message.room
	case layoutMsg:
		model.layout = message.layout
	case roleLayoutMsg:
		model.role = message.layout
		model.roleKnown = true
		if model.isWizard() && !model.choices.FreeTextOpen {
			model.focus = FocusOptions
		}
	case historyMsg:
		model.lines = message.lines
		model.refreshChat()
	case chatLineMsg:
		model.lines = append(model.lines, message.line)
		model.refreshChat()
	case composeMsg:
		model.composePermitted = message.permitted
	case operatorWaitMsg:
		model.waiting = message.waiting
		model.waitReason = message.reason
	case choicesMsg:
		model.showChoices(message.view)
	case hintMsg:
		model.hintEnabled = message.enabled
	case finishAvailableMsg:
		model.finishAvailability = message.availability
	case finishEnabledMsg:
		model.finishEnabled = message.enabled
	case timerMsg:
		model.timer = message.text
	case slotMsg:
		model.slots[message.name] = message.value
	case progressMsg:
		model.progress = message.percent
		model.haveProgress = true
	case confirmationMsg:
		model.prompt = message.prompt
	case closeRoomMsg:
		model.closed = true
	case reloadMsg:
		model.reloading = true
		model.prompt = nil
		model.textEnabled = false
		model.optionsEnabled = false
	default:
		return false
	}
	model.resize()
	return true
}

// showChoices installs a new option list and moves the cursor to the
// session's selection.
func (model *Model) showChoices(view session.ChoiceView) {
	model.choices = view
	model.haveChoices = true
	rows := model.optionRows()
	if index := slices.IndexFunc(rows, func(option session.DialogueOption) bool {
		return option.ID == view.SelectedID
	}); view.SelectedID != "" && index >= 0 {
		model.cursor = index
	}
	model.cursor = max(0, min(model.cursor, len(rows)-1))

	switch {
	case view.FreeTextOpen && model.focus != FocusInput:
		model.input.SetValue(view.FreeText)
	case !view.FreeTextOpen && model.focus == FocusInput && model.isWizard():
		model.input.Reset()
		model.focus = FocusOptions
	}
}

// syncInput focuses the compose line exactly when it accepts input.
func (model *Model) syncInput() tea.Cmd {
	if model.inputActive() {
		return model.input.Focus()
	}
	model.input.Blur()
	return nil
}

func (model Model) isWizard() bool {
	return model.roleKnown && model.role.Role.IsWizard()
}

func (model Model) usable() bool {
	return !model.closed && !model.reloading && model.actions != nil
}

// inputActive reports whether typed text goes anywhere: the chat for
// non-wizards, the free-text option for wizards.
func (model Model) inputActive() bool {
	if !model.usable() || !model.roleKnown || !model.role.TaskRoom || model.focus != FocusInput {
		return false
	}
	if model.isWizard() {
		return model.optionsEnabled && model.choices.FreeTextOpen
	}
	return model.textEnabled && model.composePermitted && !model.waiting
}

// optionRows are the rows of the option list: the visible options, then
// the free-text row when free text is allowed.
func (model Model) optionRows() []session.DialogueOption {
	if !model.haveChoices {
		return model.role.GeneralOptions
	}
	rows := slices.Clone(model.choices.Options)
	if model.choices.AllowFreeText {
		rows = append(rows, session.DialogueOption{ID: session.FreeTextOptionID, Text: "Free text…"})
	}
	return rows
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(message, model.keys.Quit) {
		return model, tea.Quit
	}
	if !model.usable() {
		return model, nil
	}

	if model.prompt != nil {
		switch {
		case key.Matches(message, model.keys.Confirm) && model.prompt.ConfirmLabel != "":
			model.actions.Confirm()
		case key.Matches(message, model.keys.Cancel) && model.prompt.CancelLabel != "":
			model.actions.Cancel()
		case key.Matches(message, model.keys.Dismiss):
			model.actions.Dismiss()
		}
		return model, nil
	}

	switch {
	case key.Matches(message, model.keys.PageUp):
		model.chat.LineUp(max(1, model.chat.Height-1))
		return model, nil
	case key.Matches(message, model.keys.PageDown):
		model.chat.LineDown(max(1, model.chat.Height-1))
		return model, nil
	case key.Matches(message, model.keys.Finish):
		if model.finishEnabled {
			model.actions.RequestFinishTask()
		}
		return model, nil
	}

	if !model.isWizard() {
		return model.handleComposeKey(message)
	}

	switch {
	case key.Matches(message, model.keys.Hint):
		if model.hintEnabled {
			model.actions.RequestHint()
		}
		return model, nil
	case key.Matches(message, model.keys.Reload):
		model.actions.ReloadDialogueChoices()
		return model, nil
	}
	if !model.optionsEnabled {
		return model, nil
	}

	switch {
	case key.Matches(message, model.keys.FreeText):
		return model.openFreeText()
	case key.Matches(message, model.keys.FocusToggle):
		if model.focus == FocusInput {
			model.focus = FocusOptions
			cmd := model.syncInput()
			return model, cmd
		}
		return model.openFreeText()
	}

	if model.focus == FocusInput {
		return model.handleFreeTextKey(message)
	}
	return model.handleOptionKey(message)
}

// handleComposeKey handles keys for a user who types chat messages.
func (model Model) handleComposeKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !model.inputActive() {
		return model, nil
	}
	if key.Matches(message, model.keys.Submit) {
		if text := strings.TrimSpace(model.input.Value()); text != "" {
			model.actions.SubmitText(text)
			model.input.Reset()
		}
		return model, nil
	}
	var cmd tea.Cmd
	model.input, cmd = model.input.Update(message)
	return model, cmd
}

func (model Model) openFreeText() (tea.Model, tea.Cmd) {
	if !model.haveChoices || !model.choices.AllowFreeText {
		return model, nil
	}
	model.actions.OpenFreeText()
	model.focus = FocusInput
	model.cursor = len(model.optionRows()) - 1
	// The session confirms with a ChoiceView; until then the input is
	// live so the first keystrokes are not lost.
	model.choices.FreeTextOpen = true
	cmd := model.syncInput()
	return model, cmd
}

func (model Model) handleFreeTextKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(message, model.keys.Submit) {
		model.actions.UpdateFreeText(model.input.Value())
		model.actions.SubmitSelection()
		return model, nil
	}
	before := model.input.Value()
	var cmd tea.Cmd
	model.input, cmd = model.input.Update(message)
	if after := model.input.Value(); after != before {
		model.actions.UpdateFreeText(after)
	}
	return model, cmd
}

func (model Model) handleOptionKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := model.optionRows()
	if len(rows) == 0 {
		return model, nil
	}
	switch {
	case key.Matches(message, model.keys.Up):
		model.cursor = max(0, model.cursor-1)
	case key.Matches(message, model.keys.Down):
		model.cursor = min(len(rows)-1, model.cursor+1)
	case key.Matches(message, model.keys.Select):
		if rows[model.cursor].ID == session.FreeTextOptionID {
			return model.openFreeText()
		}
		model.actions.SelectOption(rows[model.cursor].ID)
	case key.Matches(message, model.keys.Submit):
		if rows[model.cursor].ID == session.FreeTextOptionID {
			return model.openFreeText()
		}
		if rows[model.cursor].ID != model.choices.SelectedID {
			model.actions.SelectOption(rows[model.cursor].ID)
		}
		model.actions.SubmitSelection()
	}
	return model, nil
}

// Peers returns the occupants the model currently shows.
func (model Model) Peers() map[int]string { return maps.Clone(model.peers) }
