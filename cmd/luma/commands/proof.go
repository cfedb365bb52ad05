// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/lib/constituency"
)

func proofCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "proof",
		Summary:     "Work with constituency proofs",
		Subcommands: []*cli.Command{proofRefCommand(stdout)},
	}
}

// proofReport is the output of proof ref.
type proofReport struct {
	Ref          string               `json:"ref"`
	Verification *constituency.Result `json:"verification,omitempty"`
}

func proofRefCommand(stdout io.Writer) *cli.Command {
	var proofPath, nullifier, district string
	var outputJSON bool
	return &cli.Command{
		Name:    "ref",
		Summary: "Print a proof's content reference",
		Description: `Print the content reference of a constituency proof: a BLAKE3
digest of its canonical encoding, safe to log in place of the proof.

With --nullifier and --district the proof is also verified against
them. Exit status is then 1 when verification fails.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ref", pflag.ContinueOnError)
			flagSet.StringVar(&proofPath, "proof", "", "proof file (- for stdin)")
			flagSet.StringVar(&nullifier, "nullifier", "", "expected nullifier")
			flagSet.StringVar(&district, "district", "", "expected district hash")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("proof", proofPath); err != nil {
				return err
			}
			var proof constituency.Proof
			if err := cli.ReadJSONC(proofPath, &proof); err != nil {
				return fmt.Errorf("reading proof: %w", err)
			}

			report := proofReport{Ref: constituency.ProofRef(proof)}
			if nullifier != "" || district != "" {
				result := constituency.VerifyProof(&proof, nullifier, district)
				report.Verification = &result
			}

			if outputJSON {
				if err := cli.WriteJSON(stdout, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(stdout, report.Ref)
				if report.Verification != nil {
					if report.Verification.Valid {
						fmt.Fprintln(stdout, "valid")
					} else {
						fmt.Fprintf(stdout, "invalid: %s\n", report.Verification.Error)
					}
				}
			}
			if report.Verification != nil && !report.Verification.Valid {
				return &cli.ExitError{Code: cli.ExitCodeDenied}
			}
			return nil
		},
	}
}
