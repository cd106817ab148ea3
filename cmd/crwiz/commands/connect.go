// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/crwiz-project/crwiz/cmd/crwiz/cli"
	"github.com/crwiz-project/crwiz/journal"
	"github.com/crwiz-project/crwiz/lib/chatui"
	"github.com/crwiz-project/crwiz/lib/config"
	"github.com/crwiz-project/crwiz/session"
)

type connectParams struct {
	configParams
	Journal    string `flag:"journal" desc:"record the session to this file (default journal.path)"`
	LogFile    string `flag:"log-file" desc:"also write JSON logs to this file"`
	Headless   bool   `flag:"headless" desc:"log the session instead of drawing it"`
	MaxReloads int    `flag:"max-reloads" desc:"fresh sessions to try after the server rejects one" default:"3"`
}

func connectCommand() *cli.Command {
	var params connectParams
	return &cli.Command{
		Name:    "connect",
		Summary: "Join a chat session",
		Description: `Join a chat session with the configured token.

The terminal UI shows the room, the chat and, for the wizard, the
dialogue options. The server URL and token come from the config file
or the CRWIZ_SERVER_URL and CRWIZ_TOKEN environment variables.`,
		Usage: "crwiz connect [flags]",
		Examples: []cli.Example{
			{
				Description: "Join with a token from the environment",
				Command:     "CRWIZ_TOKEN=... crwiz connect -c crwiz.yaml",
			},
			{
				Description: "Record the session for later replay",
				Command:     "crwiz connect --journal session.journal",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("connect", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			return runConnect(ctx, params)
		},
	}
}

func runConnect(ctx context.Context, params connectParams) error {
	cfg, err := params.load()
	if err != nil {
		return err
	}
	if cfg.Server.Token == "" {
		return cli.Validation("no login token: set CRWIZ_TOKEN or server.token")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var handlers cli.TeeHandler
	if params.LogFile != "" {
		file, err := os.OpenFile(params.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return cli.Internal("opening log file: %w", err)
		}
		defer file.Close()
		handler, err := cli.NewLogHandler(cli.LoggerOptions{Level: cfg.Log.Level, Format: "json", Writer: file})
		if err != nil {
			return cli.Validation("%w", err)
		}
		handlers = append(handlers, handler)
	}

	if params.Headless {
		handler, err := cli.NewLogHandler(cli.LoggerOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return cli.Validation("%w", err)
		}
		logger := slog.New(append(handlers, handler))
		runner, closeJournal, err := newSessionRunner(cfg, params, newLogPresenter(logger), logger)
		if err != nil {
			return err
		}
		defer closeJournal()
		return runner.run(ctx)
	}

	level, err := cli.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cli.Validation("%w", err)
	}
	chatHandler := chatui.NewLogHandler(level)
	logger := slog.New(append(handlers, chatHandler))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	program := tea.NewProgram(chatui.NewModel(nil), tea.WithAltScreen(), tea.WithContext(ctx))
	chatHandler.SetProgram(program)

	runner, closeJournal, err := newSessionRunner(cfg, params, chatui.NewPresenter(program), logger)
	if err != nil {
		return err
	}
	defer closeJournal()
	runner.attach = func(synchronizer *session.Synchronizer) {
		program.Send(chatui.Attach(synchronizer))
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- runner.run(ctx)
		program.Quit()
	}()

	_, runErr := program.Run()
	cancel()
	sessionErr := <-sessionDone
	if sessionErr != nil {
		return sessionErr
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return cli.Internal("terminal UI: %w", runErr)
	}
	return nil
}

// newSessionRunner builds the REST client and the optional journal
// around presenter. The returned close function flushes the journal.
func newSessionRunner(cfg *config.Config, params connectParams, presenter session.Presenter, logger *slog.Logger) (*sessionRunner, func(), error) {
	client, err := newAPIClient(cfg.APIBaseURL(), cfg.Server.Token, logger)
	if err != nil {
		return nil, nil, err
	}
	recorder, err := openJournal(cfg, params.Journal, logger)
	if err != nil {
		return nil, nil, err
	}

	base := sessionConfig(cfg)
	base.Presenter = presenter
	runner := &sessionRunner{
		socketURL:  cfg.SocketURL(),
		token:      cfg.Server.Token,
		api:        client,
		base:       base,
		recorder:   recorder,
		logger:     logger,
		maxReloads: params.MaxReloads,
	}
	closeJournal := func() {
		if recorder == nil {
			return
		}
		if err := recorder.Close(); err != nil {
			logger.Error("closing journal", "error", err)
		}
	}
	return runner, closeJournal, nil
}

// openJournal creates the session journal, or returns nil when neither
// the flag nor the config names a path.
func openJournal(cfg *config.Config, path string, logger *slog.Logger) (*journal.Recorder, error) {
	if path == "" {
		path = cfg.Journal.Path
	}
	if path == "" {
		return nil, nil
	}
	compression, err := journal.ParseCompression(cfg.Journal.Compression)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	recorder, err := journal.Create(path, journal.RecorderConfig{
		Compression: compression,
		Logger:      logger,
	})
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	logger.Info("recording session", "path", path, "compression", compression.String())
	return recorder, nil
}
