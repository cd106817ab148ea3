// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/crwiz-project/crwiz/session"
)

// dialogMaxWidth bounds the confirmation dialog's outer width.
const dialogMaxWidth = 60

// spliceOverlay replaces a rectangular region of a rendered view with
// overlay lines, starting at (anchorX, anchorY). Truncation is
// ANSI-aware so escape sequences on both sides of the overlay survive.
func spliceOverlay(view string, overlayLines []string, anchorX, anchorY int) string {
	if len(overlayLines) == 0 {
		return view
	}

	viewLines := strings.Split(view, "\n")
	overlayWidth := ansi.StringWidth(overlayLines[0])

	for index, overlayLine := range overlayLines {
		viewLineIndex := anchorY + index
		if viewLineIndex < 0 || viewLineIndex >= len(viewLines) {
			continue
		}
		viewLine := viewLines[viewLineIndex]
		viewLineWidth := ansi.StringWidth(viewLine)

		var result strings.Builder
		if anchorX > 0 {
			prefix := ansi.Truncate(viewLine, anchorX, "")
			result.WriteString(prefix)
			// Short lines are padded so the overlay lands in its column.
			if gap := anchorX - ansi.StringWidth(prefix); gap > 0 {
				result.WriteString(strings.Repeat(" ", gap))
			}
		}
		result.WriteString("\x1b[0m")
		result.WriteString(overlayLine)
		result.WriteString("\x1b[0m")

		if suffixStart := anchorX + overlayWidth; suffixStart < viewLineWidth {
			result.WriteString(ansi.TruncateLeft(viewLine, suffixStart, ""))
		}
		viewLines[viewLineIndex] = result.String()
	}
	return strings.Join(viewLines, "\n")
}

// renderDialog draws the confirmation dialog as a bordered box. Only
// the buttons with a label are offered.
func renderDialog(prompt session.Prompt, keys KeyMap, theme Theme, screenWidth int) []string {
	width := min(dialogMaxWidth, max(screenWidth-4, 20))
	innerWidth := width - 4

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground)
	helpStyle := lipgloss.NewStyle().Foreground(theme.HelpText)

	var buttons []string
	if prompt.ConfirmLabel != "" {
		buttons = append(buttons, keys.Confirm.Help().Key+" "+prompt.ConfirmLabel)
	}
	if prompt.CancelLabel != "" {
		buttons = append(buttons, keys.Cancel.Help().Key+" "+prompt.CancelLabel)
	}
	buttons = append(buttons, keys.Dismiss.Help().Key+" close")

	content := strings.Join([]string{
		titleStyle.Render(prompt.Title),
		"",
		ansi.Wrap(prompt.Body, innerWidth, " -"),
		"",
		helpStyle.Render(strings.Join(buttons, "  ·  ")),
	}, "\n")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Foreground(theme.DialogForeground).
		Background(theme.DialogBackground).
		Padding(0, 1).
		Width(width - 2).
		Render(content)
	return strings.Split(box, "\n")
}
