// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"log/slog"
	"sort"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/session"
)

// logPresenter renders a session as log records. connect --headless and
// replay --session use it where there is no terminal to draw on.
type logPresenter struct {
	logger *slog.Logger
}

func newLogPresenter(logger *slog.Logger) *logPresenter {
	return &logPresenter{logger: logger.With("component", "presenter")}
}

func (p *logPresenter) EnableTextInput()  { p.logger.Debug("text input", "enabled", true) }
func (p *logPresenter) DisableTextInput() { p.logger.Debug("text input", "enabled", false) }

func (p *logPresenter) EnableDialogueOptions() {
	p.logger.Debug("dialogue options", "enabled", true)
}

func (p *logPresenter) DisableDialogueOptions() {
	p.logger.Debug("dialogue options", "enabled", false)
}

func (p *logPresenter) SetPeers(peers map[int]string) {
	names := make([]string, 0, len(peers))
	for _, name := range peers {
		names = append(names, name)
	}
	sort.Strings(names)
	p.logger.Info("peers", "names", names)
}

func (p *logPresenter) ApplyRoom(room session.RoomView) {
	p.logger.Info("room", "name", room.Name, "label", room.Label)
}

func (p *logPresenter) ApplyLayout(layout api.Layout) {
	p.logger.Debug("layout", "title", layout.Title)
}

func (p *logPresenter) ApplyRoleLayout(layout session.RoleLayout) {
	p.logger.Info("role", "role", layout.Role.String(), "task_room", layout.TaskRoom)
}

func (p *logPresenter) ShowHistory(entries []api.LogEntry) {
	p.logger.Info("history", "entries", len(entries))
}

func (p *logPresenter) AppendMessage(line session.ChatLine) {
	attrs := []any{"from", line.From}
	if line.ImageURL != "" {
		attrs = append(attrs, "image", line.ImageURL)
	} else {
		attrs = append(attrs, "text", line.Text)
	}
	if line.Private {
		attrs = append(attrs, "private", true)
	}
	p.logger.Info("message", attrs...)
}

func (p *logPresenter) SetComposePermitted(permitted bool) {
	p.logger.Debug("compose permitted", "permitted", permitted)
}

func (p *logPresenter) SetOperatorWait(reason string, waiting bool) {
	p.logger.Info("operator wait", "waiting", waiting, "reason", reason)
}

func (p *logPresenter) ShowChoices(view session.ChoiceView) {
	ids := make([]string, len(view.Options))
	for i, option := range view.Options {
		ids[i] = option.ID
	}
	p.logger.Info("choices", "prompt", view.Prompt, "options", ids, "selected", view.SelectedID)
}

func (p *logPresenter) SetHintEnabled(enabled bool) {
	p.logger.Debug("hint", "enabled", enabled)
}

func (p *logPresenter) FlashOption(optionID string) {
	p.logger.Info("hint", "option", optionID)
}

func (p *logPresenter) SetFinishAvailable(availability session.FinishAvailability) {
	p.logger.Debug("finish available", "available", availability == session.FinishYes)
}

func (p *logPresenter) SetFinishEnabled(enabled bool) {
	p.logger.Debug("finish enabled", "enabled", enabled)
}

func (p *logPresenter) RenderTimer(text string) { p.logger.Debug("timer", "left", text) }

func (p *logPresenter) SetSlot(name, value string) {
	p.logger.Debug("slot", "name", name, "value", value)
}

func (p *logPresenter) SetProgress(percent float64) {
	p.logger.Info("progress", "percent", percent)
}

func (p *logPresenter) ShowConfirmation(prompt session.Prompt) {
	p.logger.Info("confirmation", "title", prompt.Title, "body", prompt.Body)
}

func (p *logPresenter) HideConfirmation() { p.logger.Debug("confirmation hidden") }

func (p *logPresenter) CloseRoom() { p.logger.Info("room closed") }

func (p *logPresenter) Reload() { p.logger.Warn("session reset") }
