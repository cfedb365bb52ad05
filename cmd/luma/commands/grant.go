// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/delegation"
	"github.com/vhc-foundation/luma/lib/registry"
)

func grantCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "grant",
		Summary: "Create, sign and check delegation grants",
		Subcommands: []*cli.Command{
			grantKeygenCommand(stdout),
			grantMintCommand(stdout),
			grantAssertCommand(stdout),
			grantVerifyCommand(stdout),
			grantRevokeCommand(stdout),
		},
	}
}

func grantKeygenCommand(stdout io.Writer) *cli.Command {
	var out, principal string
	return &cli.Command{
		Name:    "keygen",
		Summary: "Create a principal keyring",
		Description: `Create a signing keyring for a principal.

Writes keyring.json (the secret seed, mode 0600) and principal.pub (the
base64url grant public key, suitable for delegation.principal_public_key)
to the output directory.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flagSet.StringVar(&out, "out", "", "directory to write the keyring to")
			flagSet.StringVar(&principal, "principal", "", "principal nullifier")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("out", out); err != nil {
				return err
			}
			if err := requireFlag("principal", principal); err != nil {
				return err
			}
			k, err := newKeyring(principal)
			if err != nil {
				return err
			}
			public, err := k.write(out)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, base64.RawURLEncoding.EncodeToString(public))
			return nil
		},
	}
}

type mintParams struct {
	state       stateFlags
	keyDir      string
	familiar    string
	scopes      []string
	ttl         time.Duration
	maxLifetime time.Duration
	at          string
	record      bool
}

func grantMintCommand(stdout io.Writer) *cli.Command {
	var params mintParams
	return &cli.Command{
		Name:    "mint",
		Summary: "Mint and sign a grant",
		Description: `Mint a delegation grant from the keyring's principal to a familiar,
sign it with the principal's grant key and print it as JSON.

With --record the grant is also issued into the principal's registry,
which checks the familiar's capability preset.`,
		Examples: []cli.Example{
			{Command: "luma grant mint --key ~/.luma/keys --familiar scout --scope draft --scope post --ttl 2h"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mint", pflag.ContinueOnError)
			params.state.register(flagSet)
			flagSet.StringVar(&params.keyDir, "key", "", "keyring directory")
			flagSet.StringVar(&params.familiar, "familiar", "", "familiar ID")
			flagSet.StringSliceVar(&params.scopes, "scope", nil, "scope to grant (repeatable)")
			flagSet.DurationVar(&params.ttl, "ttl", time.Hour, "grant lifetime")
			flagSet.DurationVar(&params.maxLifetime, "max-lifetime", time.Duration(delegation.DefaultMaxGrantLifetime)*time.Millisecond, "longest lifetime to accept")
			flagSet.StringVar(&params.at, "at", "", "issue at this instant (Unix ms or RFC 3339) instead of now")
			flagSet.BoolVar(&params.record, "record", false, "issue the grant into the principal's registry")
			return flagSet
		},
		Run: func(args []string) error {
			return runMint(context.Background(), stdout, &params)
		},
	}
}

func runMint(ctx context.Context, stdout io.Writer, params *mintParams) error {
	if err := requireFlag("key", params.keyDir); err != nil {
		return err
	}
	if err := requireFlag("familiar", params.familiar); err != nil {
		return err
	}
	if len(params.scopes) == 0 {
		return fmt.Errorf("at least one --scope is required")
	}
	k, err := readKeyring(params.keyDir)
	if err != nil {
		return err
	}
	signingKey, err := k.grantKey()
	if err != nil {
		return err
	}
	mintClock, err := commandClock(params.at)
	if err != nil {
		return err
	}
	now := clock.UnixMilli(mintClock)

	scopes := make([]delegation.Scope, len(params.scopes))
	for index, scope := range params.scopes {
		scopes[index] = delegation.Scope(scope)
	}
	grant, err := delegation.SignGrant(signingKey, delegation.Grant{
		GrantID:            uuid.NewString(),
		PrincipalNullifier: k.Principal,
		FamiliarID:         params.familiar,
		Scopes:             scopes,
		IssuedAt:           now,
		ExpiresAt:          now + params.ttl.Milliseconds(),
	})
	if err != nil {
		return err
	}
	grant, err = delegation.CreateGrant(grant, delegation.CreateOptions{
		Now:           &now,
		MaxLifetimeMs: params.maxLifetime.Milliseconds(),
	})
	if err != nil {
		return err
	}
	// CreateGrant may have dropped duplicate scopes.
	if grant, err = delegation.SignGrant(signingKey, grant); err != nil {
		return err
	}

	if params.record {
		cfg, err := params.state.loadConfig()
		if err != nil {
			return err
		}
		familiars, persister, err := openRegistry(ctx, cfg, k.Principal, mintClock, params.state.logger())
		if err != nil {
			return err
		}
		defer persister.Close()
		if grant, err = familiars.IssueGrant(ctx, grant, delegation.CreateOptions{Now: &now}); err != nil {
			return err
		}
	}
	return cli.WriteJSON(stdout, grant)
}

func grantAssertCommand(stdout io.Writer) *cli.Command {
	var keyDir, grantPath, at string
	return &cli.Command{
		Name:    "assert",
		Summary: "Sign an on-behalf-of assertion for a grant",
		Description: `Sign an on-behalf-of assertion for a grant with the familiar's
assertion key, derived from the principal's keyring. The assertion is
bound to --at (default now), which must be the instant the action is
checked.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("assert", pflag.ContinueOnError)
			flagSet.StringVar(&keyDir, "key", "", "keyring directory")
			flagSet.StringVar(&grantPath, "grant", "", "grant file (- for stdin)")
			flagSet.StringVar(&at, "at", "", "issue at this instant (Unix ms or RFC 3339) instead of now")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("key", keyDir); err != nil {
				return err
			}
			if err := requireFlag("grant", grantPath); err != nil {
				return err
			}
			k, err := readKeyring(keyDir)
			if err != nil {
				return err
			}
			var grant delegation.Grant
			if err := cli.ReadJSONC(grantPath, &grant); err != nil {
				return fmt.Errorf("reading grant: %w", err)
			}
			signingKey, err := k.assertionKey(grant.FamiliarID)
			if err != nil {
				return err
			}
			assertClock, err := commandClock(at)
			if err != nil {
				return err
			}
			assertion, err := delegation.SignAssertion(signingKey, delegation.Assertion{
				PrincipalNullifier: grant.PrincipalNullifier,
				FamiliarID:         grant.FamiliarID,
				GrantID:            grant.GrantID,
				IssuedAt:           clock.UnixMilli(assertClock),
			})
			if err != nil {
				return err
			}
			return cli.WriteJSON(stdout, assertion)
		},
	}
}

// grantVerification is the result of grant verify.
type grantVerification struct {
	GrantID   string `json:"grantId"`
	Valid     bool   `json:"valid"`
	Signature string `json:"signature"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func grantVerifyCommand(stdout io.Writer) *cli.Command {
	var keyDir, publicKey, grantPath, at string
	var outputJSON bool
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a grant's shape, signature and validity window",
		Description: `Check a grant's shape and signature, and report whether it is
pending, active or expired at --at (default now). Revocations live in
the registry and are not consulted here.

Exit status is 0 for a valid, active grant, 1 otherwise.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.StringVar(&grantPath, "grant", "", "grant file (- for stdin)")
			flagSet.StringVar(&keyDir, "key", "", "keyring directory holding principal.pub")
			flagSet.StringVar(&publicKey, "public-key", "", "base64url principal public key")
			flagSet.StringVar(&at, "at", "", "check at this instant (Unix ms or RFC 3339) instead of now")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("grant", grantPath); err != nil {
				return err
			}
			key, err := loadPublicKey(keyDir, publicKey)
			if err != nil {
				return err
			}
			var grant delegation.Grant
			if err := cli.ReadJSONC(grantPath, &grant); err != nil {
				return fmt.Errorf("reading grant: %w", err)
			}
			verifyClock, err := commandClock(at)
			if err != nil {
				return err
			}

			result := verifyGrant(key, grant, clock.UnixMilli(verifyClock))
			if outputJSON {
				if err := cli.WriteJSON(stdout, result); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(stdout, "grant %s: signature %s, %s\n", result.GrantID, result.Signature, result.Status)
				if result.Error != "" {
					fmt.Fprintf(stdout, "  %s\n", result.Error)
				}
			}
			if !result.Valid {
				return &cli.ExitError{Code: cli.ExitCodeDenied}
			}
			return nil
		},
	}
}

func verifyGrant(key ed25519.PublicKey, grant delegation.Grant, now int64) grantVerification {
	result := grantVerification{GrantID: grant.GrantID, Signature: "invalid", Status: string(registry.StatusUnknown)}
	if err := grant.Validate(); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := delegation.VerifyGrantSignature(key, grant); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Signature = "valid"

	switch {
	case now < grant.IssuedAt:
		result.Status = string(registry.StatusPending)
	case now >= grant.ExpiresAt:
		result.Status = string(registry.StatusExpired)
	default:
		result.Status = string(registry.StatusActive)
		result.Valid = true
	}
	return result
}

// loadPublicKey reads the principal key from --public-key or from
// principal.pub in --key.
func loadPublicKey(keyDir, encoded string) (ed25519.PublicKey, error) {
	if encoded == "" && keyDir == "" {
		return nil, errors.New("one of --key or --public-key is required")
	}
	if encoded == "" {
		k, err := readKeyring(keyDir)
		if err != nil {
			return nil, err
		}
		return k.grantPublicKey()
	}
	return decodePublicKey(encoded)
}

func grantRevokeCommand(stdout io.Writer) *cli.Command {
	var state stateFlags
	var principal, grantID, at string
	return &cli.Command{
		Name:    "revoke",
		Summary: "Revoke a grant in the principal's registry",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("revoke", pflag.ContinueOnError)
			state.register(flagSet)
			flagSet.StringVar(&principal, "principal", "", "principal nullifier")
			flagSet.StringVar(&grantID, "grant", "", "grant ID")
			flagSet.StringVar(&at, "at", "", "revoke as of this instant (Unix ms or RFC 3339) instead of now")
			return flagSet
		},
		Run: func(args []string) error {
			if err := requireFlag("principal", principal); err != nil {
				return err
			}
			if err := requireFlag("grant", grantID); err != nil {
				return err
			}
			cfg, err := state.loadConfig()
			if err != nil {
				return err
			}
			revokeClock, err := commandClock(at)
			if err != nil {
				return err
			}
			ctx := context.Background()
			familiars, persister, err := openRegistry(ctx, cfg, principal, revokeClock, state.logger())
			if err != nil {
				return err
			}
			defer persister.Close()
			if err := familiars.RevokeGrant(ctx, grantID); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "revoked %s at %d\n", grantID, familiars.Revocations()[grantID])
			return nil
		},
	}
}
