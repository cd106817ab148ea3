// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment the client talks to.
type Environment string

const (
	// Development is a chat server on the local machine.
	Development Environment = "development"
	// Staging is a pre-production server used for pilot sessions.
	Staging Environment = "staging"
	// Production is the server real participants use.
	Production Environment = "production"
)

// Config is the client configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Server configures the chat server endpoints and credentials.
	Server ServerConfig `yaml:"server"`

	// Session configures the interaction timings and the wizard's
	// general options.
	Session SessionConfig `yaml:"session"`

	// Journal configures the event journal.
	Journal JournalConfig `yaml:"journal"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Server  *ServerConfig  `yaml:"server,omitempty"`
	Journal *JournalConfig `yaml:"journal,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// ServerConfig configures the chat server.
type ServerConfig struct {
	// URL is the server's base URL (http or https).
	URL string `yaml:"url"`

	// APIPrefix is prepended to every REST path.
	// Default: /slurk/api
	APIPrefix string `yaml:"api_prefix"`

	// SocketPath is the push channel's path on the server.
	// Default: /ws
	SocketPath string `yaml:"socket_path"`

	// Token is the login token. Prefer CRWIZ_TOKEN over writing it to
	// the file.
	Token string `yaml:"token"`
}

// SessionConfig configures session timings and options.
type SessionConfig struct {
	// HintDelay is how long the hint stays disabled after new options.
	// Default: 5s
	HintDelay string `yaml:"hint_delay"`

	// SendCooldown is how long the wizard's options stay disabled after
	// a submission when turn taking is off.
	// Default: 1s
	SendCooldown string `yaml:"send_cooldown"`

	// GeneralOptions replace the wizard's built-in general options when
	// set.
	GeneralOptions []GeneralOption `yaml:"general_options,omitempty"`
}

// GeneralOption is one static wizard option.
type GeneralOption struct {
	StateName string `yaml:"state_name"`
	Text      string `yaml:"text"`
}

// JournalConfig configures the event journal.
type JournalConfig struct {
	// Path is where the journal is written. Empty disables recording.
	// ${HOME} and ${VAR:-default} are expanded.
	Path string `yaml:"path"`

	// Compression is one of zstd, lz4, none.
	// Default: zstd
	Compression string `yaml:"compression"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is one of auto, text, json. Auto picks text on a terminal.
	// Default: auto
	Format string `yaml:"format"`
}

// envOverrides are the environment variables that override the file.
type envOverrides struct {
	Environment  string        `env:"CRWIZ_ENVIRONMENT"`
	ServerURL    string        `env:"CRWIZ_SERVER_URL"`
	APIPrefix    string        `env:"CRWIZ_API_PREFIX"`
	SocketPath   string        `env:"CRWIZ_SOCKET_PATH"`
	Token        string        `env:"CRWIZ_TOKEN"`
	HintDelay    time.Duration `env:"CRWIZ_HINT_DELAY"`
	SendCooldown time.Duration `env:"CRWIZ_SEND_COOLDOWN"`
	JournalPath  string        `env:"CRWIZ_JOURNAL"`
	Compression  string        `env:"CRWIZ_JOURNAL_COMPRESSION"`
	LogLevel     string        `env:"CRWIZ_LOG_LEVEL"`
	LogFormat    string        `env:"CRWIZ_LOG_FORMAT"`
}

// Default returns the default configuration. Server.URL and
// Server.Token have no default.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			APIPrefix:  "/slurk/api",
			SocketPath: "/ws",
		},
		Session: SessionConfig{
			HintDelay:    "5s",
			SendCooldown: "1s",
		},
		Journal: JournalConfig{
			Compression: "zstd",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds the configuration from the file named by CRWIZ_CONFIG,
// if set, and the CRWIZ_* environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CRWIZ_CONFIG"))
}

// LoadFile builds the configuration from the file at path and the
// CRWIZ_* environment overrides. An empty path means defaults plus
// environment only; a path that cannot be read is an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv applies CRWIZ_* variables. Unset variables leave the file's
// values alone.
func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}

	setString := func(target *string, value string) {
		if value != "" {
			*target = value
		}
	}
	if overrides.Environment != "" {
		c.Environment = Environment(overrides.Environment)
	}
	setString(&c.Server.URL, overrides.ServerURL)
	setString(&c.Server.APIPrefix, overrides.APIPrefix)
	setString(&c.Server.SocketPath, overrides.SocketPath)
	setString(&c.Server.Token, overrides.Token)
	setString(&c.Journal.Path, overrides.JournalPath)
	setString(&c.Journal.Compression, overrides.Compression)
	setString(&c.Log.Level, overrides.LogLevel)
	setString(&c.Log.Format, overrides.LogFormat)
	if overrides.HintDelay > 0 {
		c.Session.HintDelay = overrides.HintDelay.String()
	}
	if overrides.SendCooldown > 0 {
		c.Session.SendCooldown = overrides.SendCooldown.String()
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production logs as JSON unless told otherwise.
		if overrides == nil {
			overrides = &ConfigOverrides{Log: &LogConfig{Format: "json"}}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.URL != "" {
			c.Server.URL = overrides.Server.URL
		}
		if overrides.Server.APIPrefix != "" {
			c.Server.APIPrefix = overrides.Server.APIPrefix
		}
		if overrides.Server.SocketPath != "" {
			c.Server.SocketPath = overrides.Server.SocketPath
		}
		if overrides.Server.Token != "" {
			c.Server.Token = overrides.Server.Token
		}
	}

	if overrides.Journal != nil {
		if overrides.Journal.Path != "" {
			c.Journal.Path = overrides.Journal.Path
		}
		if overrides.Journal.Compression != "" {
			c.Journal.Compression = overrides.Journal.Compression
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Journal.Path = expandVars(c.Journal.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// HintDelay returns the parsed hint delay.
func (c *Config) HintDelay() (time.Duration, error) {
	return parseDuration("session.hint_delay", c.Session.HintDelay)
}

// SendCooldown returns the parsed send cooldown.
func (c *Config) SendCooldown() (time.Duration, error) {
	return parseDuration("session.send_cooldown", c.Session.SendCooldown)
}

func parseDuration(field, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return duration, nil
}

// Validate checks the configuration for errors. It does not require a
// token; commands that connect check that themselves.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Server.URL == "" {
		errs = append(errs, fmt.Errorf("server.url is required"))
	} else if parsed, err := url.Parse(c.Server.URL); err != nil {
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("server.url must be http or https, got %q", c.Server.URL))
	}

	if !strings.HasPrefix(c.Server.SocketPath, "/") {
		errs = append(errs, fmt.Errorf("server.socket_path must start with /"))
	}

	if _, err := c.HintDelay(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SendCooldown(); err != nil {
		errs = append(errs, err)
	}

	for i, option := range c.Session.GeneralOptions {
		if option.StateName == "" || option.Text == "" {
			errs = append(errs, fmt.Errorf("session.general_options[%d] needs state_name and text", i))
		}
	}

	compressions := []string{"zstd", "lz4", "none"}
	if !contains(compressions, c.Journal.Compression) {
		errs = append(errs, fmt.Errorf("journal.compression must be one of: %v", compressions))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	formats := []string{"auto", "text", "json"}
	if !contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// APIBaseURL returns the REST base URL.
func (c *Config) APIBaseURL() string {
	return strings.TrimSuffix(c.Server.URL, "/") + c.Server.APIPrefix
}

// SocketURL returns the push channel URL.
func (c *Config) SocketURL() string {
	return strings.TrimSuffix(c.Server.URL, "/") + c.Server.SocketPath
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
