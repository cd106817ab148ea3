// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/cmd/crwiz/cli"
	"github.com/crwiz-project/crwiz/journal"
	"github.com/crwiz-project/crwiz/lib/version"
	"github.com/crwiz-project/crwiz/session"
	"github.com/crwiz-project/crwiz/transport"
)

// sessionRunner connects to the server and runs a Synchronizer over
// the connection. When the server rejects the session it starts over
// with a fresh connection and a fresh Synchronizer, up to maxReloads
// times.
type sessionRunner struct {
	socketURL string
	token     string
	api       session.API
	base      session.Config
	recorder  *journal.Recorder
	logger    *slog.Logger

	// attach is called with each new Synchronizer before it runs.
	attach func(*session.Synchronizer)

	maxReloads int
}

func (r *sessionRunner) run(ctx context.Context) error {
	for reloads := 0; ; reloads++ {
		err := r.runOnce(ctx)
		if !errors.Is(err, session.ErrSessionInvalid) {
			return err
		}
		if reloads >= r.maxReloads {
			return cli.Forbidden("server rejected the session %d times: %w", reloads+1, err)
		}
		r.logger.Warn("reconnecting with a fresh session", "reload", reloads+1)
	}
}

func (r *sessionRunner) runOnce(ctx context.Context) error {
	conn, err := transport.Dial(ctx, transport.DialConfig{
		URL:       r.socketURL,
		Token:     r.token,
		UserAgent: version.UserAgent(),
		Logger:    r.logger,
	})
	if err != nil {
		return cli.Transient("%w", err)
	}
	defer conn.Close()

	config := r.base
	config.API = r.api
	config.Emitter = conn
	config.Logger = r.logger
	if r.recorder != nil {
		config.Emitter = journal.RecordingEmitter{Recorder: r.recorder, Conn: conn}
	}

	synchronizer, err := session.New(config)
	if err != nil {
		return cli.Internal("%w", err)
	}
	handler := synchronizer.HandleFrame
	if r.recorder != nil {
		handler = r.recorder.Handler(handler)
	}
	if r.attach != nil {
		r.attach(synchronizer)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := synchronizer.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		err := conn.Run(groupCtx, handler)
		if err == nil {
			err = cli.Transient("server closed the connection")
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	err = group.Wait()
	if err == nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// newAPIClient builds the REST client with the binary's user agent.
func newAPIClient(baseURL, token string, logger *slog.Logger) (*api.Client, error) {
	client, err := api.NewClient(api.ClientConfig{
		BaseURL:   baseURL,
		Token:     token,
		UserAgent: version.UserAgent(),
		Logger:    logger,
	})
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	return client, nil
}
