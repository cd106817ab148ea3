// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/crwiz-project/crwiz/cmd/crwiz/cli"
	"github.com/crwiz-project/crwiz/lib/version"
)

type versionParams struct {
	cli.JSONOutput
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildTime string `json:"build_time"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
}

func versionCommand() *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
			return printVersion(os.Stdout, params)
		},
	}
}

func printVersion(out io.Writer, params versionParams) error {
	info := versionInfo{
		Version:   version.Version,
		Commit:    version.GitCommit,
		Dirty:     version.GitDirty == "true",
		BuildTime: version.BuildTime,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		UserAgent: version.UserAgent(),
	}
	if done, err := params.EmitJSON(out, info); done {
		return err
	}
	_, err := fmt.Fprintf(out, "crwiz %s\n", version.Full())
	return err
}
