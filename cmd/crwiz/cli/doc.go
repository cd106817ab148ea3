// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the crwiz binary.
//
// A [Command] tree is dispatched by name. Leaf commands declare their
// flags as a tagged params struct and bind it with [FlagsFromParams];
// the framework parses flags with pflag, prints structured help, and
// suggests the nearest command or flag name on a typo.
//
// Commands return [*ToolError] values to say whether a failure was bad
// input or the server's fault, and [*ExitError] when they have already
// printed their own output. [NewCommandLogger] builds the slog logger
// commands share.
package cli
