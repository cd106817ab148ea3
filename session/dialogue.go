// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/lib/clock"
	"github.com/crwiz-project/crwiz/protocol"
)

const (
	// FreeTextStateName is submitted as the state of a free-text answer.
	FreeTextStateName = "UNK"
	// FreeTextOptionID is the selection id of the free-text affordance.
	FreeTextOptionID = "utterance-free-text"

	// DefaultHintDelay is how long the hint affordance stays disabled
	// after a new option set.
	DefaultHintDelay = 5 * time.Second

	choicePrompt = "Select one of the following options:"

	// generalIDPrefix keeps general option ids apart from dynamic ones
	// that share a state name.
	generalIDPrefix = "general-"

	// transitionSuffixLength is trimmed from an utterance id before it
	// is compared with an automatic state transition target.
	transitionSuffixLength = 2
)

// GeneralOption is a static option offered to the wizard in every task
// room, next to whatever the server sends.
type GeneralOption struct {
	StateName string `yaml:"state_name"`
	Text      string `yaml:"text"`
}

// DefaultGeneralOptions are the wizard's general options when the
// configuration names none.
var DefaultGeneralOptions = []GeneralOption{
	{StateName: "holdon2seconds", Text: "Hold on, 2 seconds"},
	{StateName: "yes", Text: "Yes"},
	{StateName: "no", Text: "No"},
	{StateName: "actionperformed", Text: "Action performed"},
	{StateName: "okay", Text: "Okay"},
	{StateName: "sorrycanyourepeatthat", Text: "Sorry, can you repeat that?"},
	{StateName: "idonthavethatinformationatthemoment", Text: "Don't know"},
}

// DialogueOption is one selectable utterance.
type DialogueOption struct {
	ID          string
	StateName   string
	UtteranceID string
	// Text is the display text, with dynamic values as placeholders.
	Text      string
	IsDynamic bool
}

// ChoiceSet is the option set the server last sent.
type ChoiceSet struct {
	Options           []DialogueOption
	AllowFreeText     bool
	ShowStaticOptions bool
}

// selection is what reload preservation captures before a new set
// replaces the old one.
type selection struct {
	id        string
	stateName string
	// literal is the resolved text of the option, or the typed text
	// for free text.
	literal  string
	freeText bool
	general  bool
}

// DialogueEngine manages the wizard's options: Idle while no server
// set is on display, Presenting while one is. It keeps the selection
// across reloads and owns the hint timer. All methods run on the loop
// goroutine.
type DialogueEngine struct {
	s         *Synchronizer
	general   []DialogueOption
	hintDelay time.Duration

	initialised bool
	active      bool

	set          *ChoiceSet
	selectedID   string
	freeTextOpen bool
	freeText     string

	slots map[string]string

	hintTimer      *clock.Timer
	hintGeneration uint64
}

func newDialogueEngine(s *Synchronizer, general []GeneralOption, hintDelay time.Duration) *DialogueEngine {
	options := make([]DialogueOption, 0, len(general))
	for _, option := range general {
		options = append(options, DialogueOption{
			ID:        generalIDPrefix + OptionID(option.StateName, option.Text),
			StateName: option.StateName,
			Text:      BuildDynamicUtterance(option.Text),
		})
	}
	return &DialogueEngine{
		s:         s,
		general:   options,
		hintDelay: hintDelay,
		slots:     map[string]string{},
	}
}

// Presenting reports whether a server option set is on display.
func (e *DialogueEngine) Presenting() bool { return e.set != nil }

// SelectedID returns the selected option's id, FreeTextOptionID, or "".
func (e *DialogueEngine) SelectedID() string { return e.selectedID }

// Set returns a copy of the current option set, or nil when Idle.
func (e *DialogueEngine) Set() *ChoiceSet {
	if e.set == nil {
		return nil
	}
	clone := *e.set
	clone.Options = slices.Clone(e.set.Options)
	return &clone
}

func (e *DialogueEngine) generalOptions() []DialogueOption {
	return slices.Clone(e.general)
}

// initialise marks the wizard layout as ready and loads the first set.
func (e *DialogueEngine) initialise() {
	e.initialised = true
	e.fetchIfIdle()
}

// activate runs when wizard composition becomes allowed.
func (e *DialogueEngine) activate() {
	e.active = true
	e.fetchIfIdle()
}

// deactivate runs when wizard composition is taken away. The set and
// selection are kept; the presenter hides them.
func (e *DialogueEngine) deactivate() {
	e.active = false
}

func (e *DialogueEngine) fetchIfIdle() {
	if e.initialised && e.set == nil && !e.s.state.RoomReadOnly {
		e.fetch()
	}
}

// fetch asks the server for the current set. Fetches may overlap; each
// response is applied when it arrives, so the last to arrive wins.
func (e *DialogueEngine) fetch() {
	userID := e.s.state.LocalUser.ID
	call(e.s, "get dialogue choices", func(ctx context.Context) (*protocol.DialogueChoices, error) {
		return e.s.api.GetDialogueChoices(ctx, userID)
	}, func(choices *protocol.DialogueChoices) {
		e.present(*choices)
	})
}

// present applies a pushed or fetched set.
func (e *DialogueEngine) present(choices protocol.DialogueChoices) {
	if e.s.state.RoomReadOnly {
		e.s.logger.Debug("ignoring dialogue choices for closed room")
		return
	}
	if choices.ChoiceSelection != nil {
		previous := e.captureSelection()
		e.set = e.buildSet(*choices.ChoiceSelection)
		e.selectedID = ""
		e.freeTextOpen = false
		e.freeText = ""
		e.restoreSelection(previous)
		e.render()
	} else if choices.Reason != "" {
		e.s.logger.Debug("no dialogue choices offered", "reason", choices.Reason)
	}
	e.s.presenter.SetHintEnabled(false)
	e.restartHintTimer()
}

func (e *DialogueEngine) buildSet(selection protocol.ChoiceSelection) *ChoiceSet {
	set := &ChoiceSet{
		AllowFreeText:     selection.AllowFreeText,
		ShowStaticOptions: selection.ShowStatic(),
	}
	for _, element := range selection.Elements {
		if element.Utterance == "" {
			continue
		}
		if malformed := MalformedMarkers(element.Utterance); len(malformed) > 0 {
			e.s.logger.Warn("malformed dynamic marker left as text",
				"state_name", element.StateName,
				"fragments", malformed,
			)
		}
		text := BuildDynamicUtterance(element.Utterance)
		set.Options = append(set.Options, DialogueOption{
			ID:          OptionID(element.StateName, ClearDynamicUtterance(text)),
			StateName:   element.StateName,
			UtteranceID: element.UtteranceID,
			Text:        text,
			IsDynamic:   true,
		})
	}
	return set
}

func (e *DialogueEngine) captureSelection() selection {
	if e.selectedID == "" {
		return selection{}
	}
	if e.selectedID == FreeTextOptionID {
		return selection{
			id:       FreeTextOptionID,
			literal:  strings.TrimSpace(e.freeText),
			freeText: true,
		}
	}
	option, ok := e.visibleOption(e.selectedID)
	if !ok {
		return selection{}
	}
	return selection{
		id:        option.ID,
		stateName: option.StateName,
		literal:   strings.TrimSpace(LiteralUtterance(option.Text, e.slots)),
		general:   !option.IsDynamic,
	}
}

// restoreSelection re-applies a captured selection to the new set: by
// state name, then by literal text, then by reopening free text.
func (e *DialogueEngine) restoreSelection(previous selection) {
	switch {
	case previous.id == "":
		return
	case previous.freeText:
		if e.set.AllowFreeText {
			e.selectedID = FreeTextOptionID
			e.freeTextOpen = true
			e.freeText = previous.literal
		}
		return
	case previous.general:
		if _, ok := e.visibleOption(previous.id); ok {
			e.selectedID = previous.id
		}
		return
	}

	if previous.stateName != "" {
		for _, option := range e.set.Options {
			if option.StateName == previous.stateName {
				e.selectedID = option.ID
				return
			}
		}
	}
	if previous.literal != "" {
		for _, option := range e.set.Options {
			if strings.TrimSpace(LiteralUtterance(option.Text, e.slots)) == previous.literal {
				e.selectedID = option.ID
				return
			}
		}
	}
}

// visibleOptions returns the options the wizard can pick, general ones
// first.
func (e *DialogueEngine) visibleOptions() []DialogueOption {
	var options []DialogueOption
	if e.set == nil || e.set.ShowStaticOptions {
		options = append(options, e.general...)
	}
	if e.set != nil {
		options = append(options, e.set.Options...)
	}
	return options
}

func (e *DialogueEngine) visibleOption(id string) (DialogueOption, bool) {
	for _, option := range e.visibleOptions() {
		if option.ID == id {
			return option, true
		}
	}
	return DialogueOption{}, false
}

func (e *DialogueEngine) selectOption(id string) {
	if id == FreeTextOptionID {
		e.openFreeText()
		return
	}
	if _, ok := e.visibleOption(id); !ok {
		e.s.logger.Debug("ignoring selection of unknown option", "option", id)
		return
	}
	e.selectedID = id
	e.render()
}

func (e *DialogueEngine) openFreeText() {
	if e.set == nil || !e.set.AllowFreeText {
		e.s.logger.Debug("free text not offered")
		return
	}
	e.selectedID = FreeTextOptionID
	e.freeTextOpen = true
	e.render()
}

func (e *DialogueEngine) updateFreeText(text string) {
	if !e.freeTextOpen {
		return
	}
	e.freeText = text
	e.selectedID = FreeTextOptionID
}

// pendingSubmission returns the text and state name the current
// selection would submit.
func (e *DialogueEngine) pendingSubmission() (text, stateName string, ok bool) {
	switch e.selectedID {
	case "":
		return "", "", false
	case FreeTextOptionID:
		text = strings.TrimSpace(e.freeText)
		return text, FreeTextStateName, text != ""
	}
	option, found := e.visibleOption(e.selectedID)
	if !found {
		return "", "", false
	}
	text = strings.TrimSpace(LiteralUtterance(option.Text, e.slots))
	return text, option.StateName, text != ""
}

// submit sends the selected option: it reports the choice to the
// server, posts the chat message, clears the selection and drops the
// set. It reports whether anything was sent.
func (e *DialogueEngine) submit() bool {
	text, stateName, ok := e.pendingSubmission()
	if !ok {
		return false
	}
	e.s.presenter.SetHintEnabled(false)
	e.submitChoice(text, stateName)
	e.s.sendChatMessage(text)

	e.set = nil
	e.selectedID = ""
	e.freeTextOpen = false
	e.freeText = ""
	e.render()
	return true
}

func (e *DialogueEngine) submitChoice(text, stateName string) {
	userID := e.s.state.LocalUser.ID
	request := api.SubmitChoiceRequest{Text: text, StateName: stateName}
	call(e.s, "submit dialogue choice", func(ctx context.Context) (*api.SubmitChoiceResponse, error) {
		return e.s.api.SubmitDialogueChoice(ctx, userID, request)
	}, func(response *api.SubmitChoiceResponse) {
		if response.TransitionMedia != "" {
			e.s.sendChatMessage("image:" + response.TransitionMedia)
		}
		if response.Reason != "" {
			e.s.logger.Debug("dialogue choice not applied", "state_name", stateName, "reason", response.Reason)
		}
	})
}

// autoTransition submits, on the wizard's behalf, the option whose
// utterance id names target once its two-character suffix is trimmed.
// Elements carried by the action callback are searched before the
// options on display.
func (e *DialogueEngine) autoTransition(target string, callbackElements []protocol.ChoiceElement) {
	if e.s.state.LocalUser == nil || e.s.state.RoomReadOnly {
		return
	}
	for _, element := range callbackElements {
		if trimTransitionSuffix(element.UtteranceID) == target {
			e.submitTransition(strings.TrimSpace(LiteralUtterance(element.Utterance, e.slots)), element.UtteranceID)
			return
		}
	}
	if e.set != nil {
		for _, option := range e.set.Options {
			id := option.UtteranceID
			if id == "" {
				id = option.StateName
			}
			if trimTransitionSuffix(id) == target {
				e.submitTransition(strings.TrimSpace(LiteralUtterance(option.Text, e.slots)), option.StateName)
				return
			}
		}
	}
	e.s.logger.Debug("automatic state transition has no matching option", "target", target)
}

func (e *DialogueEngine) submitTransition(text, stateName string) {
	if text == "" {
		e.s.logger.Warn("automatic state transition has no utterance", "state_name", stateName)
		return
	}
	e.s.presenter.SetHintEnabled(false)
	e.submitChoice(text, stateName)
	e.s.sendChatMessage(text)
}

func trimTransitionSuffix(id string) string {
	if len(id) < transitionSuffixLength {
		return ""
	}
	return id[:len(id)-transitionSuffixLength]
}

// choiceElements extracts the choice_selection elements of a callback
// branch, if it carries any.
func choiceElements(branch map[string]json.RawMessage) []protocol.ChoiceElement {
	raw, ok := branch["choice_selection"]
	if !ok {
		return nil
	}
	var selection protocol.ChoiceSelection
	if err := json.Unmarshal(raw, &selection); err != nil {
		return nil
	}
	return selection.Elements
}

// requestHint asks the server which option to pick and flashes it.
func (e *DialogueEngine) requestHint() {
	userID := e.s.state.LocalUser.ID
	call(e.s, "request task hint", func(ctx context.Context) (*api.TaskHint, error) {
		return e.s.api.RequestTaskHint(ctx, userID)
	}, func(hint *api.TaskHint) {
		for _, option := range e.visibleOptions() {
			if (hint.StateName != "" && option.StateName == hint.StateName) ||
				(hint.UtteranceID != "" && option.UtteranceID == hint.UtteranceID) {
				e.s.presenter.FlashOption(option.ID)
				return
			}
		}
		e.s.logger.Debug("hinted option not on display", "state_name", hint.StateName, "utterance_id", hint.UtteranceID)
	})
}

// restartHintTimer replaces any pending hint-enable with a new one.
func (e *DialogueEngine) restartHintTimer() {
	e.hintTimer.Stop()
	e.hintGeneration++
	generation := e.hintGeneration
	e.hintTimer = e.s.clock.AfterFunc(e.hintDelay, func() {
		e.s.post(func() {
			if generation != e.hintGeneration {
				return
			}
			e.hintTimer = nil
			if !e.s.state.RoomReadOnly {
				e.s.presenter.SetHintEnabled(true)
			}
		})
	})
}

func (e *DialogueEngine) setSlot(name, value string) {
	e.slots[name] = value
}

// reset drops the set and selection and cancels the hint timer.
func (e *DialogueEngine) reset() {
	e.stopTimers()
	e.set = nil
	e.selectedID = ""
	e.freeTextOpen = false
	e.freeText = ""
}

func (e *DialogueEngine) stopTimers() {
	e.hintTimer.Stop()
	e.hintTimer = nil
	e.hintGeneration++
}

func (e *DialogueEngine) render() {
	view := ChoiceView{
		Prompt:       choicePrompt,
		Options:      e.visibleOptions(),
		SelectedID:   e.selectedID,
		FreeTextOpen: e.freeTextOpen,
		FreeText:     e.freeText,
	}
	if e.set != nil {
		view.AllowFreeText = e.set.AllowFreeText
	}
	e.s.presenter.ShowChoices(view)
}
