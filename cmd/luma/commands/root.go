// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/lib/version"
)

// Root returns the luma command tree. Command output goes to stdout;
// logs and help go to stderr.
func Root(stdout io.Writer) *cli.Command {
	var showVersion bool
	root := &cli.Command{
		Name:        "luma",
		Description: "Identity trust gate: proofs, sessions, delegation and budgets.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("luma", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*cli.Command{
			checkCommand(stdout),
			grantCommand(stdout),
			familiarCommand(stdout),
			budgetCommand(stdout),
			proofCommand(stdout),
		},
	}
	root.Run = func(args []string) error {
		if showVersion {
			fmt.Fprintf(stdout, "luma %s\n", version.Full())
			return nil
		}
		if len(args) > 0 {
			return fmt.Errorf("unknown command %q\n\nRun 'luma --help' for usage.", args[0])
		}
		root.PrintHelp(stdout)
		return nil
	}
	return root
}
