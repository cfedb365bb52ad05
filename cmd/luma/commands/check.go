// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/lib/gate"
)

type checkParams struct {
	state        stateFlags
	requestPath  string
	at           string
	preflight    bool
	outputJSON   bool
	familiarKeys map[string]string
}

func checkCommand(stdout io.Writer) *cli.Command {
	var params checkParams
	return &cli.Command{
		Name:    "check",
		Summary: "Run a request through the gate",
		Description: `Run a request through the identity trust gate and report the decision.

The request file is JSON (comments and trailing commas allowed) with
the action, proof, session, district and optional topicId, amount and
delegation. Admitted requests consume budget from the configured store
unless --preflight is set.

Exit status is 0 when the request is admitted, 1 when it is denied and
2 on error.`,
		Usage: "luma check --request <file> [flags]",
		Examples: []cli.Example{
			{Description: "Admit a post", Command: "luma check --request post.jsonc"},
			{Description: "Dry-run at a fixed instant", Command: "luma check --request vote.jsonc --preflight --at 2026-03-01T12:00:00Z"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			params.state.register(flagSet)
			flagSet.StringVarP(&params.requestPath, "request", "r", "", "request file (- for stdin)")
			flagSet.StringVar(&params.at, "at", "", "evaluate at this instant (Unix ms or RFC 3339) instead of now")
			flagSet.BoolVar(&params.preflight, "preflight", false, "check without consuming budget")
			flagSet.BoolVar(&params.outputJSON, "json", false, "output as JSON")
			flagSet.StringToStringVar(&params.familiarKeys, "familiar-key", nil, "verify assertions from familiar ID with this base64url public key (id=key, repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runCheck(context.Background(), stdout, &params)
		},
	}
}

func runCheck(ctx context.Context, stdout io.Writer, params *checkParams) error {
	if err := requireFlag("request", params.requestPath); err != nil {
		return err
	}
	var request gate.Request
	if err := cli.ReadJSONC(params.requestPath, &request); err != nil {
		return fmt.Errorf("reading request: %w", err)
	}

	cfg, err := params.state.loadConfig()
	if err != nil {
		return err
	}
	gateClock, err := commandClock(params.at)
	if err != nil {
		return err
	}
	logger := params.state.logger().With("command", "check")

	governor, store, err := openGovernor(ctx, cfg, gateClock, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	gateConfig := gate.Config{
		Governor: governor,
		Clock:    gateClock,
		Logger:   logger,
	}
	if gateConfig.NearExpiryWindowMs, err = cfg.NearExpiryWindowMs(); err != nil {
		return err
	}

	if request.Delegation != nil && request.Session.Nullifier != "" {
		familiars, persister, err := openRegistry(ctx, cfg, request.Session.Nullifier, gateClock, logger)
		if err != nil {
			return fmt.Errorf("opening delegation registry: %w", err)
		}
		defer persister.Close()
		gateConfig.Revocations = familiars

		verifier := gate.KeyVerifier{Familiars: make(map[string]ed25519.PublicKey)}
		if cfg.Delegation.RequireSignature {
			if verifier.Principal, err = cfg.PrincipalPublicKey(); err != nil {
				return err
			}
			gateConfig.GrantVerifier = verifier
		}
		for familiarID, encoded := range params.familiarKeys {
			key, err := decodePublicKey(encoded)
			if err != nil {
				return fmt.Errorf("--familiar-key %s: %w", familiarID, err)
			}
			verifier.Familiars[familiarID] = key
		}
		if len(verifier.Familiars) > 0 {
			gateConfig.AssertionVerifier = verifier
		}
	}

	checker, err := gate.New(gateConfig)
	if err != nil {
		return err
	}
	var decision gate.Decision
	if params.preflight {
		decision, err = checker.Preflight(ctx, request)
	} else {
		decision, err = checker.Admit(ctx, request)
	}
	if err != nil {
		return err
	}

	if params.outputJSON {
		if err := cli.WriteJSON(stdout, decision); err != nil {
			return err
		}
	} else {
		renderDecision(stdout, newPalette(cli.IsTerminal(stdout)), decision, params.preflight)
	}
	if !decision.Allowed {
		return &cli.ExitError{Code: cli.ExitCodeDenied}
	}
	return nil
}

func decodePublicKey(encoded string) (ed25519.PublicKey, error) {
	key, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	return ed25519.PublicKey(key), nil
}
