// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/crwiz-project/crwiz/cmd/crwiz/cli"
	"github.com/crwiz-project/crwiz/journal"
	"github.com/crwiz-project/crwiz/protocol"
	"github.com/crwiz-project/crwiz/session"
)

type replayParams struct {
	configParams
	cli.JSONOutput
	Script  bool    `flag:"script" desc:"read a JSONC event script instead of a journal"`
	Speed   float64 `flag:"speed" desc:"playback speed, 1 is real time; 0 replays without pauses"`
	Verify  bool    `flag:"verify" desc:"only check the journal's digest chain"`
	Session bool    `flag:"session" desc:"feed the events to a headless session against the configured server"`
}

func replayCommand() *cli.Command {
	var params replayParams
	return &cli.Command{
		Name:    "replay",
		Summary: "Replay a recorded journal or an event script",
		Description: `Replay the server events of a recorded session, or of a hand-written
JSONC script, in their recorded order.

By default each event is printed. With --session the events drive a
headless session instead, which fetches from the configured server's
REST API like a live client but sends nothing over the push channel.`,
		Usage: "crwiz replay [flags] <file>",
		Examples: []cli.Example{
			{
				Description: "Print a journal's events",
				Command:     "crwiz replay session.journal",
			},
			{
				Description: "Check a journal for tampering",
				Command:     "crwiz replay --verify session.journal",
			},
			{
				Description: "Drive a session from a script at twice the scripted pace",
				Command:     "crwiz replay --script --session --speed 2 -c crwiz.yaml wizard.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("replay", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("replay takes exactly one file, got %d arguments", len(args))
			}
			return runReplay(ctx, params, args[0], os.Stdout, logger)
		},
	}
}

func runReplay(ctx context.Context, params replayParams, path string, out io.Writer, logger *slog.Logger) error {
	if params.Verify {
		if params.Script {
			return cli.Validation("--verify applies to journals, not scripts")
		}
		return verifyJournal(path, out)
	}

	entries, err := loadEntries(path, params.Script)
	if err != nil {
		return err
	}

	if params.Session {
		return replayIntoSession(ctx, params, entries, logger)
	}

	inbound := make([]journal.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Direction == journal.Inbound {
			inbound = append(inbound, entry)
		}
	}
	var printErr error
	index := 0
	sink := journal.SinkFunc(func(protocol.Frame) {
		entry := inbound[index]
		index++
		if printErr == nil {
			printErr = printEntry(out, params.OutputJSON, entry, entry.Time-inbound[0].Time)
		}
	})
	if _, err := journal.Replay(ctx, entries, sink, journal.ReplayConfig{Speed: params.Speed, Logger: logger}); err != nil {
		return err
	}
	return printErr
}

func loadEntries(path string, script bool) ([]journal.Entry, error) {
	if script {
		parsed, err := journal.LoadScript(path)
		if err != nil {
			return nil, classifyFileError(err)
		}
		entries, err := parsed.Entries(time.Now())
		if err != nil {
			return nil, cli.Validation("%w", err)
		}
		return entries, nil
	}
	entries, err := journal.ReadFile(path)
	if err != nil {
		return nil, classifyFileError(err)
	}
	return entries, nil
}

func classifyFileError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return cli.NotFound("%w", err)
	}
	return cli.Validation("%w", err)
}

// replayRecord is the --json form of one replayed event.
type replayRecord struct {
	Sequence uint64          `json:"sequence"`
	Offset   string          `json:"offset"`
	Event    string          `json:"event"`
	Known    bool            `json:"known"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func printEntry(out io.Writer, asJSON bool, entry journal.Entry, offset int64) error {
	frame := entry.Frame()
	_, decodeErr := frame.Decode()
	known := !errors.Is(decodeErr, protocol.ErrUnknownEvent)
	elapsed := time.Duration(offset)

	if asJSON {
		record := replayRecord{
			Sequence: entry.Sequence,
			Offset:   elapsed.String(),
			Event:    entry.Event,
			Known:    known,
		}
		if json.Valid(entry.Data) {
			record.Data = entry.Data
		}
		return cli.WriteJSONLine(out, record)
	}

	marker := ""
	switch {
	case !known:
		marker = " (unknown event)"
	case decodeErr != nil:
		marker = " (malformed: " + decodeErr.Error() + ")"
	}
	_, err := fmt.Fprintf(out, "%9.3fs  %-24s %s%s\n", elapsed.Seconds(), entry.Event, entry.Data, marker)
	return err
}

func verifyJournal(path string, out io.Writer) error {
	reader, err := journal.Open(path)
	if err != nil {
		return classifyFileError(err)
	}
	defer reader.Close()

	count := 0
	for {
		_, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			return &cli.ExitError{Code: 1}
		}
		count++
	}
	fmt.Fprintf(out, "%s: %d entries, digest chain intact\n", path, count)
	return nil
}

// replayIntoSession runs a headless Synchronizer against the
// configured REST API and feeds it the recorded server events. Events
// the session would send are logged and dropped.
func replayIntoSession(ctx context.Context, params replayParams, entries []journal.Entry, logger *slog.Logger) error {
	cfg, err := params.load()
	if err != nil {
		return err
	}
	if cfg.Server.Token == "" {
		return cli.Validation("no login token: set CRWIZ_TOKEN or server.token")
	}
	client, err := newAPIClient(cfg.APIBaseURL(), cfg.Server.Token, logger)
	if err != nil {
		return err
	}

	config := sessionConfig(cfg)
	config.API = client
	config.Emitter = logEmitter{logger: logger}
	config.Presenter = newLogPresenter(logger)
	config.Logger = logger
	synchronizer, err := session.New(config)
	if err != nil {
		return cli.Internal("%w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- synchronizer.Run(ctx) }()

	delivered, replayErr := journal.Replay(ctx, entries, synchronizer, journal.ReplayConfig{
		Speed:  params.Speed,
		Logger: logger,
	})
	if replayErr == nil {
		replayErr = synchronizer.WaitIdle(ctx)
	}
	cancel()
	runErr := <-done
	logger.Info("replay finished", "events", delivered)

	if errors.Is(runErr, session.ErrSessionInvalid) {
		return cli.Forbidden("%w", runErr)
	}
	if replayErr != nil && !errors.Is(replayErr, context.Canceled) {
		return replayErr
	}
	return nil
}

// logEmitter stands in for the push channel during a replay.
type logEmitter struct {
	logger *slog.Logger
}

func (e logEmitter) Emit(event protocol.Event) error {
	e.logger.Info("not sending during replay", "event", event.EventName())
	return nil
}
