// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/crwiz-project/crwiz/session"
)

// maxOptionRows bounds the option panel so the chat log stays visible.
const maxOptionRows = 12

// resize recomputes the heights of the chat log and compose line.
func (model *Model) resize() {
	if !model.ready {
		return
	}
	model.input.Width = max(1, model.width-ansi.StringWidth(model.input.Prompt)-1)

	used := len(model.headerLines()) + len(model.bannerLines()) + 1 // status line
	used += len(model.optionLines())
	if model.showInput() {
		used++
	}
	model.chat.Width = model.width
	model.chat.Height = max(1, model.height-used)
	model.refreshChat()
}

// refreshChat re-renders the chat lines into the viewport, keeping it
// pinned to the bottom if it was there.
func (model *Model) refreshChat() {
	atBottom := model.chat.AtBottom()
	width := max(model.width, 20)
	rendered := make([]string, 0, len(model.lines))
	for _, line := range model.lines {
		rendered = append(rendered, ansi.Wrap(model.renderChatLine(line), width, " -"))
	}
	model.chat.SetContent(strings.Join(rendered, "\n"))
	if atBottom {
		model.chat.GotoBottom()
	}
}

func (model Model) renderChatLine(line session.ChatLine) string {
	nameColor := model.theme.PeerName
	if line.Own {
		nameColor = model.theme.OwnName
	}
	name := lipgloss.NewStyle().Bold(true).Foreground(nameColor).Render(line.From + ":")

	body := line.Text
	if line.ImageURL != "" {
		body = "[image] " + line.ImageURL
	}
	bodyStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	if line.Private {
		bodyStyle = bodyStyle.Foreground(model.theme.PrivateText).Italic(true)
		body = "(private) " + body
	}
	return name + " " + bodyStyle.Render(body)
}

func (model Model) headerLines() []string {
	title := model.room.Label
	if title == "" {
		title = model.room.Name
	}
	if model.layout.Title != "" {
		title += " · " + model.layout.Title
	}
	if title == "" {
		title = "connecting…"
	}
	if model.roleKnown {
		title += " [" + model.role.Role.String() + "]"
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(title)

	if model.room.ShowUsers && len(model.peers) > 0 {
		ids := make([]int, 0, len(model.peers))
		for id := range model.peers {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		names := make([]string, len(ids))
		for index, id := range ids {
			names[index] = model.peers[id]
		}
		header += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  with " + strings.Join(names, ", "))
	}
	return []string{ansi.Truncate(header, max(model.width, 1), "…")}
}

func (model Model) bannerLines() []string {
	warning := lipgloss.NewStyle().Bold(true).Foreground(model.theme.WarningText)
	switch {
	case model.reloading:
		return []string{warning.Render("Session expired. Reconnecting…")}
	case model.closed:
		return []string{warning.Render("This room is closed.")}
	case model.waiting:
		return []string{warning.Render(model.waitReason)}
	}
	return nil
}

// showOptions reports whether the option panel is drawn: only for a
// wizard in a task room, and hidden while options are disabled.
func (model Model) showOptions() bool {
	return model.isWizard() && model.role.TaskRoom && model.optionsEnabled && !model.closed
}

func (model Model) showInput() bool {
	if !model.roleKnown || !model.role.TaskRoom || model.closed {
		return false
	}
	if model.isWizard() {
		return model.showOptions() && model.choices.FreeTextOpen
	}
	return true
}

func (model Model) optionLines() []string {
	if !model.showOptions() {
		return nil
	}
	rows := model.optionRows()
	prompt := model.choices.Prompt
	if prompt == "" {
		prompt = "Options"
	}
	lines := []string{lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(prompt)}

	// Scroll the window so the cursor stays visible.
	start := 0
	if len(rows) > maxOptionRows {
		start = max(0, min(model.cursor-maxOptionRows/2, len(rows)-maxOptionRows))
		rows = rows[start : start+maxOptionRows]
	}
	for offset, option := range rows {
		lines = append(lines, model.renderOption(start+offset, option))
	}
	return lines
}

func (model Model) renderOption(index int, option session.DialogueOption) string {
	cursor := "  "
	if model.focus == FocusOptions && index == model.cursor {
		cursor = "› "
	}
	mark := "○ "
	if option.ID == model.choices.SelectedID {
		mark = "● "
	}
	text := session.LiteralUtterance(option.Text, model.slots)

	style := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	switch {
	case option.ID == model.flashID:
		style = style.Background(model.theme.FlashBackground)
	case option.ID == model.choices.SelectedID:
		style = style.Foreground(model.theme.SelectedForeground).Background(model.theme.SelectedBackground)
	}
	if option.IsDynamic {
		text += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(" ·")
	}
	return ansi.Truncate(cursor+style.Render(mark+text), max(model.width, 1), "…")
}

func (model Model) statusLine() string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	var parts []string
	if model.timer != "" {
		parts = append(parts, "⏱ "+model.timer)
	}
	if model.haveProgress {
		parts = append(parts, fmt.Sprintf("%.0f%%", model.progress))
	}
	if model.roleKnown && model.role.TaskRoom && !model.closed {
		finishColor := model.theme.FinishUnknown
		switch model.finishAvailability {
		case session.FinishYes:
			finishColor = model.theme.FinishYes
		case session.FinishNo:
			finishColor = model.theme.FinishNo
		}
		if !model.finishEnabled {
			finishColor = model.theme.DisabledText
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(finishColor).Render(model.keys.Finish.Help().Key+" finish"))
		if model.isWizard() && model.hintEnabled {
			parts = append(parts, faint.Render(model.keys.Hint.Help().Key+" hint"))
		}
	}

	if model.status != "" {
		color := model.theme.HelpText
		switch {
		case model.statusLevel >= slog.LevelError:
			color = model.theme.ErrorText
		case model.statusLevel >= slog.LevelWarn:
			color = model.theme.WarningText
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(color).Render(model.status))
	}
	return ansi.Truncate(strings.Join(parts, faint.Render("  │  ")), max(model.width, 1), "…")
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "connecting…"
	}
	sections := model.headerLines()
	sections = append(sections, model.bannerLines()...)
	sections = append(sections, model.chat.View())
	sections = append(sections, model.optionLines()...)
	if model.showInput() {
		sections = append(sections, model.input.View())
	}
	sections = append(sections, model.statusLine())
	view := strings.Join(sections, "\n")

	if model.prompt != nil {
		dialog := renderDialog(*model.prompt, model.keys, model.theme, model.width)
		anchorX := max(0, (model.width-ansi.StringWidth(dialog[0]))/2)
		anchorY := max(0, (model.height-len(dialog))/2)
		view = spliceOverlay(view, dialog, anchorX, anchorY)
	}
	return view
}
