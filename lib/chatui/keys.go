// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the chat UI.
type KeyMap struct {
	// Option list (wizard only).
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding // Select the option under the cursor.
	FreeText key.Binding // Open the free-text option and focus the input.

	// FocusToggle moves a wizard between the option list and the
	// free-text input.
	FocusToggle key.Binding

	// Submit sends the typed message or the selected option.
	Submit key.Binding

	// Chat log scrolling.
	PageUp   key.Binding
	PageDown key.Binding

	Hint    key.Binding
	Reload  key.Binding
	Finish  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Dismiss key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "select"),
	),
	FreeText: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "free text"),
	),
	FocusToggle: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "focus"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Hint: key.NewBinding(
		key.WithKeys("ctrl+g"),
		key.WithHelp("C-g", "hint"),
	),
	Reload: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "reload options"),
	),
	Finish: key.NewBinding(
		key.WithKeys("ctrl+f"),
		key.WithHelp("C-f", "finish"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y", "enter"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "cancel"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
