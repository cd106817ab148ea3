// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/crwiz-project/crwiz/cmd/crwiz/cli"
	"github.com/crwiz-project/crwiz/cmd/crwiz/commands"
)

func main() {
	err := run()
	if err == nil {
		return
	}

	// Commands that print their own output return an ExitError; don't
	// add a redundant "error:" line for those.
	var exitError *cli.ExitError
	if errors.As(err, &exitError) {
		os.Exit(exitError.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)

	var toolError *cli.ToolError
	if errors.As(err, &toolError) {
		os.Exit(toolError.ExitCode())
	}
	os.Exit(1)
}

func run() error {
	return commands.Root().Execute(context.Background(), os.Args[1:])
}
