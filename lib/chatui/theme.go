// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette of the chat UI. Colors are ANSI 256-color
// codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Chat authors.
	OwnName     lipgloss.Color
	PeerName    lipgloss.Color
	PrivateText lipgloss.Color

	// Option list.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color
	FlashBackground    lipgloss.Color
	DisabledText       lipgloss.Color

	// Finish-task affordance by availability.
	FinishYes     lipgloss.Color
	FinishNo      lipgloss.Color
	FinishUnknown lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	WarningText      lipgloss.Color
	ErrorText        lipgloss.Color

	DialogForeground lipgloss.Color
	DialogBackground lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	OwnName:     lipgloss.Color("75"),  // blue
	PeerName:    lipgloss.Color("114"), // green
	PrivateText: lipgloss.Color("141"), // light purple

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),
	FlashBackground:    lipgloss.Color("58"), // dark amber
	DisabledText:       lipgloss.Color("240"),

	FinishYes:     lipgloss.Color("114"),
	FinishNo:      lipgloss.Color("208"),
	FinishUnknown: lipgloss.Color("245"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	WarningText:      lipgloss.Color("220"),
	ErrorText:        lipgloss.Color("196"),

	DialogForeground: lipgloss.Color("252"),
	DialogBackground: lipgloss.Color("237"),
}
