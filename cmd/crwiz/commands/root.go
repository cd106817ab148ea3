// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the crwiz command tree.
package commands

import "github.com/crwiz-project/crwiz/cmd/crwiz/cli"

// Root builds and returns the complete crwiz command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "crwiz",
		Description: `crwiz: terminal client for collaborative chat tasks.

Join a room as a player or as the wizard, answer the server's
confirmations, and record or replay sessions.`,
		Subcommands: []*cli.Command{
			connectCommand(),
			replayCommand(),
			versionCommand(),
		},
	}
}
