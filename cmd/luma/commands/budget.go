// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
)

func budgetCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "budget",
		Summary:     "Inspect daily action budgets",
		Subcommands: []*cli.Command{budgetShowCommand(stdout)},
	}
}

func budgetShowCommand(stdout io.Writer) *cli.Command {
	var state stateFlags
	var nullifier, at string
	var outputJSON bool
	return &cli.Command{
		Name:    "show",
		Summary: "Show a nullifier's budget for today",
		Description: `Show a nullifier's budget for the current day. A missing budget is
created and a stale one rolled over, exactly as the gate would before
consuming.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			state.register(flagSet)
			flagSet.StringVar(&nullifier, "nullifier", "", "nullifier to inspect")
			flagSet.StringVar(&at, "at", "", "show the budget for the day of this instant (Unix ms or RFC 3339)")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("nullifier", nullifier); err != nil {
				return err
			}
			cfg, err := state.loadConfig()
			if err != nil {
				return err
			}
			budgetClock, err := commandClock(at)
			if err != nil {
				return err
			}
			ctx := context.Background()
			governor, store, err := openGovernor(ctx, cfg, budgetClock, state.logger())
			if err != nil {
				return err
			}
			defer store.Close()

			current, err := governor.Ensure(ctx, nullifier)
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(stdout, current)
			}
			p := newPalette(cli.IsTerminal(stdout))
			fmt.Fprintf(stdout, "%s %s\n", p.label.Render(current.Nullifier), current.Date)
			renderRemaining(stdout, p, current)
			return nil
		},
	}
}
