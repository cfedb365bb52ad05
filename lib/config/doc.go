// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for LUMA
// components.
//
// Configuration is loaded from a single file specified by either the
// LUMA_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production is stricter by default:
// grant signatures are required and the in-memory budget store is
// rejected by [Config.Validate].
//
// Variable expansion is performed on path and connection fields after
// loading: ${HOME}, ${LUMA_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Durations are written as Go duration strings ("24h", "90m") and
// read back as Unix-millisecond spans through accessor methods, since
// every timestamp in LUMA is an integer millisecond count.
package config
