// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the luma command tree.
//
// Commands that touch stored state (check, budget, familiar, and
// grant mint --record) load a luma.yaml from --config or LUMA_CONFIG
// and open the configured budget store and delegation registry for the
// duration of one invocation. The rest work on files alone.
package commands
