// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the crwiz
// client.
//
// Configuration comes from at most one file, named by the
// CRWIZ_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]), followed by CRWIZ_* environment overrides such as
// CRWIZ_SERVER_URL, CRWIZ_TOKEN and CRWIZ_LOG_LEVEL. There is no file
// discovery.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production logs as JSON by default.
//
// ${HOME} and ${VAR:-default} patterns are expanded in the journal path.
//
// Key exports:
//
//   - [Config] -- master struct with Server, Session, Journal, Log
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other crwiz packages.
package config
