// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the luma binary.
//
// A [Command] has a name, an optional [pflag.FlagSet] factory, and
// either a Run function or nested [Command.Subcommands]. The tree is
// assembled in cmd/luma/commands and dispatched with
// [Command.Execute], which parses flags, routes subcommands and prints
// help. Unknown commands and flags get a "did you mean" suggestion
// when one is within edit distance 3.
//
// Commands report a handled non-zero outcome (a denied gate decision,
// say) with [ExitError], which main turns into the process exit code
// without printing anything further.
package cli
