// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"io/fs"
	"os"

	"github.com/crwiz-project/crwiz/cmd/crwiz/cli"
	"github.com/crwiz-project/crwiz/lib/config"
	"github.com/crwiz-project/crwiz/session"
)

// configParams is embedded by every command that reads the client
// configuration.
type configParams struct {
	ConfigPath string `flag:"config,c" desc:"config file (default $CRWIZ_CONFIG)"`
}

// load reads and validates the configuration. A missing file is a
// not-found error; anything wrong with its content is a validation
// error.
func (p configParams) load() (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = os.Getenv("CRWIZ_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cli.NotFound("%w", err)
		}
		return nil, cli.Validation("%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("config: %w", err)
	}
	return cfg, nil
}

// sessionConfig maps the validated configuration onto a session
// config. API, Emitter and Presenter are left for the caller.
func sessionConfig(cfg *config.Config) session.Config {
	// Validate has already parsed both durations.
	hintDelay, _ := cfg.HintDelay()
	sendCooldown, _ := cfg.SendCooldown()

	var general []session.GeneralOption
	if len(cfg.Session.GeneralOptions) > 0 {
		general = make([]session.GeneralOption, len(cfg.Session.GeneralOptions))
		for i, option := range cfg.Session.GeneralOptions {
			general[i] = session.GeneralOption{StateName: option.StateName, Text: option.Text}
		}
	}

	return session.Config{
		GeneralOptions: general,
		HintDelay:      hintDelay,
		SendCooldown:   sendCooldown,
	}
}
