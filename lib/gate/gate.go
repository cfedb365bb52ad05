// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/budgetstore"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/constituency"
	"github.com/vhc-foundation/luma/lib/contract"
	"github.com/vhc-foundation/luma/lib/delegation"
	"github.com/vhc-foundation/luma/lib/session"
)

// Stage names the check that decided a request.
type Stage string

const (
	StageProof      Stage = "proof"
	StageSession    Stage = "session"
	StageDelegation Stage = "delegation"
	StageBudget     Stage = "budget"

	// StageComplete marks a request that passed every stage.
	StageComplete Stage = "complete"
)

// Denial reasons produced by the gate itself. Other reasons come from
// constituency, delegation and budget unchanged.
const (
	ReasonInvalidSession          = "invalid session"
	ReasonSessionExpired          = "session expired"
	ReasonGrantPrincipalMismatch  = "grant principal does not match session"
	ReasonInvalidGrantSignature   = "invalid grant signature"
	ReasonInvalidAssertionSigning = "invalid assertion signature"

	WarningSessionNearExpiry = "session near expiry"
)

// Request is one gated action.
type Request struct {
	Action Action `json:"action"`

	// Proof is the constituency proof presented with the action. Its
	// nullifier must match Session.Nullifier.
	Proof *constituency.Proof `json:"proof"`

	Session session.Response `json:"session"`

	// District is the district hash the action is scoped to.
	District string `json:"district"`

	// TopicID scopes per-topic budget caps. Optional.
	TopicID string `json:"topicId,omitempty"`

	// Amount is how many units of budget the action consumes.
	// Zero means one.
	Amount int `json:"amount,omitempty"`

	// Delegation is set when a familiar performs the action.
	Delegation *DelegatedContext `json:"delegation,omitempty"`
}

// DelegatedContext is the evidence a familiar presents.
type DelegatedContext struct {
	Grant                delegation.Grant      `json:"grant"`
	Assertion            *delegation.Assertion `json:"assertion,omitempty"`
	HighImpactApprovedAt *int64                `json:"highImpactApprovedAt,omitempty"`
}

// Decision is the gate's answer.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Stage    Stage    `json:"stage"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// At is the instant (Unix ms) every stage was evaluated at.
	At int64 `json:"at"`

	// ProofRef identifies the proof once it has been verified.
	ProofRef string `json:"proofRef,omitempty"`

	// Budget is the budget after consumption. Admit sets it for
	// admitted actions that carry a budget key.
	Budget *budget.NullifierBudget `json:"budget,omitempty"`
}

// Config configures a Gate.
type Config struct {
	Governor *budgetstore.Governor

	// Revocations supplies grant revocations. Nil means none.
	Revocations RevocationSource

	// GrantVerifier, when set, must accept every grant.
	GrantVerifier GrantVerifier

	// AssertionVerifier, when set, must accept every assertion
	// presented with a grant.
	AssertionVerifier AssertionVerifier

	Clock  clock.Clock
	Logger *slog.Logger

	// Registerer receives the gate's metrics. When nil the metrics
	// go to a private registry.
	Registerer prometheus.Registerer

	// NearExpiryWindowMs is the session warning window. Zero means
	// session.NearExpiryWindow.
	NearExpiryWindowMs int64
}

// Gate runs the admission chain. It is safe for concurrent use.
type Gate struct {
	governor          *budgetstore.Governor
	revocations       RevocationSource
	grantVerifier     GrantVerifier
	assertionVerifier AssertionVerifier
	clock             clock.Clock
	logger            *slog.Logger
	metrics           *metrics
	nearExpiryWindow  int64
}

// New returns a Gate.
func New(cfg Config) (*Gate, error) {
	if cfg.Governor == nil {
		return nil, contract.Invalidf("gate: a budget governor is required")
	}
	if cfg.NearExpiryWindowMs < 0 {
		return nil, contract.Rangef("nearExpiryWindowMs must be non-negative, got: %d", cfg.NearExpiryWindowMs)
	}
	gate := &Gate{
		governor:          cfg.Governor,
		revocations:       cfg.Revocations,
		grantVerifier:     cfg.GrantVerifier,
		assertionVerifier: cfg.AssertionVerifier,
		clock:             cfg.Clock,
		logger:            cfg.Logger,
		nearExpiryWindow:  cfg.NearExpiryWindowMs,
	}
	if gate.clock == nil {
		gate.clock = clock.Real()
	}
	if gate.logger == nil {
		gate.logger = slog.New(slog.DiscardHandler)
	}
	if gate.nearExpiryWindow == 0 {
		gate.nearExpiryWindow = session.NearExpiryWindow
	}
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	gate.metrics = newMetrics(registerer)
	return gate, nil
}

// Admit runs every stage and, when they all pass, consumes the
// action's budget.
func (g *Gate) Admit(ctx context.Context, request Request) (Decision, error) {
	return g.run(ctx, request, modeAdmit)
}

// Preflight runs every stage without consuming budget. A preflight
// approval does not reserve anything: a later Admit re-runs the chain
// at its own instant.
func (g *Gate) Preflight(ctx context.Context, request Request) (Decision, error) {
	return g.run(ctx, request, modePreflight)
}

func (g *Gate) run(ctx context.Context, request Request, mode string) (Decision, error) {
	started := time.Now()
	decision, err := g.decide(ctx, request, mode)
	g.metrics.duration.WithLabelValues(mode).Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		g.metrics.decisions.WithLabelValues(string(decision.Stage), outcomeError).Inc()
		g.logger.Warn("gate request failed",
			"mode", mode,
			"action", request.Action,
			"stage", decision.Stage,
			"error", err,
		)
	case decision.Allowed:
		g.metrics.decisions.WithLabelValues(string(decision.Stage), outcomeAllowed).Inc()
		g.logger.Debug("gate admitted",
			"mode", mode,
			"action", request.Action,
			"nullifier", request.Session.Nullifier,
			"proof_ref", decision.ProofRef,
		)
	default:
		g.metrics.decisions.WithLabelValues(string(decision.Stage), outcomeDenied).Inc()
		g.logger.Info("gate denied",
			"mode", mode,
			"action", request.Action,
			"stage", decision.Stage,
			"reason", decision.Reason,
		)
	}
	return decision, err
}

func (g *Gate) decide(ctx context.Context, request Request, mode string) (Decision, error) {
	now := clock.UnixMilli(g.clock)
	decision := Decision{At: now, Stage: StageProof}

	if !request.Action.Valid() {
		return decision, contract.Invalidf("unknown action: %q", request.Action)
	}
	amount := request.Amount
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		return decision, contract.Rangef("amount must be a positive integer, got: %d", amount)
	}

	nullifier := request.Session.Nullifier

	proofResult := constituency.VerifyProof(request.Proof, nullifier, request.District)
	if !proofResult.Valid {
		return deny(decision, StageProof, string(proofResult.Error)), nil
	}
	decision.ProofRef = constituency.ProofRef(*request.Proof)

	decision.Stage = StageSession
	if err := session.Validate(request.Session); err != nil {
		return deny(decision, StageSession, ReasonInvalidSession+": "+err.Error()), nil
	}
	if session.IsExpiredAt(request.Session, now) {
		return deny(decision, StageSession, ReasonSessionExpired), nil
	}
	if session.IsNearExpiryAt(request.Session, now, g.nearExpiryWindow) {
		decision.Warnings = append(decision.Warnings, WarningSessionNearExpiry)
	}

	if request.Delegation != nil {
		decision.Stage = StageDelegation
		if reason := g.checkDelegation(*request.Delegation, request.Action.Scope(), nullifier, now); reason != "" {
			return deny(decision, StageDelegation, reason), nil
		}
	}

	key, budgeted := request.Action.BudgetKey()
	if !budgeted {
		decision.Stage = StageComplete
		decision.Allowed = true
		return decision, nil
	}

	decision.Stage = StageBudget
	if mode == modePreflight {
		check, err := g.governor.Check(ctx, nullifier, key, amount, request.TopicID)
		if err != nil {
			return decision, err
		}
		if !check.Allowed {
			return deny(decision, StageBudget, check.Reason), nil
		}
	} else {
		updated, err := g.governor.Consume(ctx, nullifier, key, amount, request.TopicID)
		var denied *budget.DeniedError
		if errors.As(err, &denied) {
			return deny(decision, StageBudget, denied.Reason), nil
		}
		if err != nil {
			return decision, err
		}
		decision.Budget = updated
	}

	decision.Stage = StageComplete
	decision.Allowed = true
	return decision, nil
}

// checkDelegation returns the denial reason, or "" when the familiar
// may act.
func (g *Gate) checkDelegation(delegated DelegatedContext, scope delegation.Scope, principal string, now int64) string {
	grant := delegated.Grant
	if grant.PrincipalNullifier != principal {
		return ReasonGrantPrincipalMismatch
	}
	if g.grantVerifier != nil {
		if err := g.grantVerifier.VerifyGrant(grant); err != nil {
			return ReasonInvalidGrantSignature
		}
	}
	if delegated.Assertion != nil && g.assertionVerifier != nil {
		if err := g.assertionVerifier.VerifyAssertion(*delegated.Assertion); err != nil {
			return ReasonInvalidAssertionSigning
		}
	}

	var revocations delegation.Revocations
	if g.revocations != nil {
		revocations = g.revocations.Revocations()
	}
	result := delegation.CanPerformDelegated(grant, scope, now, delegation.CheckOptions{
		Assertion:            delegated.Assertion,
		Revocations:          revocations,
		ActionTime:           &now,
		HighImpactApprovedAt: delegated.HighImpactApprovedAt,
	})
	if !result.Allowed {
		return result.Reason
	}
	return ""
}

func deny(decision Decision, stage Stage, reason string) Decision {
	decision.Allowed = false
	decision.Stage = stage
	decision.Reason = reason
	return decision
}
