// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for linefs.
//
// Configuration is loaded from a single file specified by either the
// LINEFS_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. When neither is
// given, [Default] is used as is.
//
// One environment variable overrides a config value: LINEFS_FILE
// replaces source.path. Command-line flags are applied by the caller
// after loading and take precedence over both.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Source, Index, Mount, Log
//   - [Default] -- returns a Config with the built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every invalid field at once
//
// This package depends on no other linefs packages.
package config
