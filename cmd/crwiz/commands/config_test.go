// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crwiz-project/crwiz/cmd/crwiz/cli"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crwiz.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigParamsLoad(t *testing.T) {
	t.Setenv("CRWIZ_CONFIG", "")
	t.Setenv("CRWIZ_SERVER_URL", "")

	path := writeConfig(t, `
server:
  url: http://localhost:5000
session:
  hint_delay: 3s
  general_options:
    - state_name: wait
      text: One moment
`)
	cfg, err := configParams{ConfigPath: path}.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	sessionCfg := sessionConfig(cfg)
	if sessionCfg.HintDelay != 3*time.Second {
		t.Errorf("HintDelay = %v, want 3s", sessionCfg.HintDelay)
	}
	if sessionCfg.SendCooldown != time.Second {
		t.Errorf("SendCooldown = %v, want the 1s default", sessionCfg.SendCooldown)
	}
	if len(sessionCfg.GeneralOptions) != 1 || sessionCfg.GeneralOptions[0].StateName != "wait" {
		t.Errorf("GeneralOptions = %+v", sessionCfg.GeneralOptions)
	}

	t.Setenv("CRWIZ_CONFIG", path)
	if _, err := (configParams{}).load(); err != nil {
		t.Errorf("load via CRWIZ_CONFIG: %v", err)
	}
}

func TestConfigParamsDefaultGeneralOptions(t *testing.T) {
	t.Setenv("CRWIZ_CONFIG", "")
	t.Setenv("CRWIZ_SERVER_URL", "http://localhost:5000")

	cfg, err := configParams{}.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if general := sessionConfig(cfg).GeneralOptions; general != nil {
		t.Errorf("GeneralOptions = %+v, want nil so the session uses its defaults", general)
	}
}

func TestConfigParamsErrors(t *testing.T) {
	t.Setenv("CRWIZ_CONFIG", "")
	t.Setenv("CRWIZ_SERVER_URL", "")

	_, err := configParams{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}.load()
	if cli.CategoryOf(err) != cli.CategoryNotFound {
		t.Errorf("missing file = %v, want not found", err)
	}

	_, err = configParams{ConfigPath: writeConfig(t, "server: [")}.load()
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("bad YAML = %v, want validation", err)
	}

	_, err = configParams{ConfigPath: writeConfig(t, "log:\n  level: loud\n")}.load()
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("invalid config = %v, want validation", err)
	}
}
