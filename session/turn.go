// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package session

// TurnInputs are everything the turn decision depends on.
type TurnInputs struct {
	RoomReadOnly      bool
	TurnTakingEnabled bool
	HasCurrentTurn    bool
	InputEnabled      bool
	Role              Role
}

// ComposeAllowed reports whether the local user may currently produce
// input.
func ComposeAllowed(in TurnInputs) bool {
	return in.InputEnabled && !in.RoomReadOnly && (!in.TurnTakingEnabled || in.HasCurrentTurn)
}

// Composer is the part of the presentation that composition gating
// switches on and off.
type Composer interface {
	EnableTextInput()
	DisableTextInput()
	EnableDialogueOptions()
	DisableDialogueOptions()
}

// ControlTurn applies the turn decision through composer and returns
// it. Wizards compose by picking dialogue options; everyone else types.
func ControlTurn(in TurnInputs, composer Composer) bool {
	allowed := ComposeAllowed(in)
	if allowed {
		enableComposition(in.Role, composer)
	} else {
		disableComposition(in.Role, composer)
	}
	return allowed
}

func enableComposition(role Role, composer Composer) {
	if role.IsWizard() {
		composer.EnableDialogueOptions()
	} else {
		composer.EnableTextInput()
	}
}

func disableComposition(role Role, composer Composer) {
	if role.IsWizard() {
		composer.DisableDialogueOptions()
	} else {
		composer.DisableTextInput()
	}
}
