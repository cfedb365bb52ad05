// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/delegation"
	"github.com/vhc-foundation/luma/lib/registry"
)

func familiarCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "familiar",
		Summary: "Manage a principal's familiars",
		Subcommands: []*cli.Command{
			familiarAddCommand(stdout),
			familiarListCommand(stdout),
			familiarRevokeCommand(stdout),
			familiarKeyCommand(stdout),
		},
	}
}

// registryFlags are the flags every registry-backed familiar command
// takes.
type registryFlags struct {
	state     stateFlags
	principal string
	at        string
}

func (f *registryFlags) register(flagSet *pflag.FlagSet) {
	f.state.register(flagSet)
	flagSet.StringVar(&f.principal, "principal", "", "principal nullifier")
	flagSet.StringVar(&f.at, "at", "", "act at this instant (Unix ms or RFC 3339) instead of now")
}

// open loads the config and the principal's registry. The caller
// closes the returned persister.
func (f *registryFlags) open(ctx context.Context) (*registry.Registry, *registry.SQLitePersister, error) {
	if err := requireFlag("principal", f.principal); err != nil {
		return nil, nil, err
	}
	cfg, err := f.state.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	registryClock, err := commandClock(f.at)
	if err != nil {
		return nil, nil, err
	}
	return openRegistry(ctx, cfg, f.principal, registryClock, f.state.logger())
}

func familiarAddCommand(stdout io.Writer) *cli.Command {
	var flags registryFlags
	var id, label, tier string
	return &cli.Command{
		Name:    "add",
		Summary: "Register a familiar",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("add", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&id, "id", "", "familiar ID (default: generated)")
			flagSet.StringVar(&label, "label", "", "human-readable label")
			flagSet.StringVar(&tier, "tier", string(delegation.TierSuggest), "capability preset: suggest, act or high-impact")
			return flagSet
		},
		Run: func(args []string) error {
			ctx := context.Background()
			familiars, persister, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer persister.Close()
			familiar, err := familiars.RegisterFamiliar(ctx, registry.FamiliarInput{
				ID:               id,
				Label:            label,
				CapabilityPreset: delegation.Tier(tier),
			})
			if err != nil {
				return err
			}
			return cli.WriteJSON(stdout, familiar)
		},
	}
}

// familiarListing is one row of familiar list.
type familiarListing struct {
	registry.Familiar
	Grants []grantListing `json:"grants"`
}

type grantListing struct {
	GrantID   string             `json:"grantId"`
	Scopes    []delegation.Scope `json:"scopes"`
	ExpiresAt int64              `json:"expiresAt"`
	Status    registry.Status    `json:"status"`
}

func familiarListCommand(stdout io.Writer) *cli.Command {
	var flags registryFlags
	var outputJSON bool
	return &cli.Command{
		Name:    "list",
		Summary: "List a principal's familiars and their grants",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			ctx := context.Background()
			familiars, persister, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer persister.Close()

			listings := listFamiliars(familiars)
			if outputJSON {
				return cli.WriteJSON(stdout, listings)
			}
			tw := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "FAMILIAR\tLABEL\tPRESET\tGRANT\tSTATUS\tSCOPES")
			for _, listing := range listings {
				revoked := ""
				if listing.RevokedAt != nil {
					revoked = fmt.Sprintf(" (revoked %d)", *listing.RevokedAt)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s%s\t\t\t\n", listing.ID, listing.Label, listing.CapabilityPreset, revoked)
				for _, grant := range listing.Grants {
					fmt.Fprintf(tw, "\t\t\t%s\t%s\t%v\n", grant.GrantID, grant.Status, grant.Scopes)
				}
			}
			return tw.Flush()
		},
	}
}

func listFamiliars(familiars *registry.Registry) []familiarListing {
	byFamiliar := make(map[string][]grantListing)
	for _, grant := range familiars.Grants() {
		byFamiliar[grant.FamiliarID] = append(byFamiliar[grant.FamiliarID], grantListing{
			GrantID:   grant.GrantID,
			Scopes:    grant.Scopes,
			ExpiresAt: grant.ExpiresAt,
			Status:    familiars.GrantStatus(grant.GrantID),
		})
	}
	var listings []familiarListing
	for _, familiar := range familiars.Familiars() {
		grants := byFamiliar[familiar.ID]
		if grants == nil {
			grants = []grantListing{}
		}
		listings = append(listings, familiarListing{Familiar: familiar, Grants: grants})
	}
	return listings
}

func familiarRevokeCommand(stdout io.Writer) *cli.Command {
	var flags registryFlags
	var id string
	return &cli.Command{
		Name:    "revoke",
		Summary: "Revoke a familiar and every grant issued to it",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("revoke", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&id, "id", "", "familiar ID")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("id", id); err != nil {
				return err
			}
			ctx := context.Background()
			familiars, persister, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer persister.Close()
			if err := familiars.RevokeFamiliar(ctx, id); err != nil {
				return err
			}
			for _, familiar := range familiars.Familiars() {
				if familiar.ID == id && familiar.RevokedAt != nil {
					fmt.Fprintf(stdout, "revoked %s at %s\n", id, clock.FromMilli(*familiar.RevokedAt).Format("2006-01-02T15:04:05.000Z"))
					return nil
				}
			}
			return fmt.Errorf("familiar %q not found", id)
		},
	}
}

func familiarKeyCommand(stdout io.Writer) *cli.Command {
	var keyDir, id string
	return &cli.Command{
		Name:    "key",
		Summary: "Print a familiar's assertion public key",
		Description: `Print the base64url public key a familiar's assertions are signed
with. Pass it to luma check as --familiar-key <id>=<key>.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("key", pflag.ContinueOnError)
			flagSet.StringVar(&keyDir, "key", "", "keyring directory")
			flagSet.StringVar(&id, "id", "", "familiar ID")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("key", keyDir); err != nil {
				return err
			}
			if err := requireFlag("id", id); err != nil {
				return err
			}
			k, err := readKeyring(keyDir)
			if err != nil {
				return err
			}
			private, err := k.assertionKey(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, base64.RawURLEncoding.EncodeToString(private.Public().(ed25519.PublicKey)))
			return nil
		},
	}
}
