// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import (
	"fmt"

	"github.com/vhc-foundation/luma/lib/contract"
)

// CreateOptions bounds grant creation.
type CreateOptions struct {
	// Now, when set, rejects grants issued in the future.
	Now *int64

	// MaxLifetimeMs caps ExpiresAt-IssuedAt. Zero selects
	// DefaultMaxGrantLifetime; negative values are rejected.
	MaxLifetimeMs int64
}

// CreateGrant validates g and returns a copy with duplicate scopes
// removed (first occurrence kept, order preserved). Malformed grants
// fail with contract.ErrInvalid; bad timing or lifetime fails with
// contract.ErrRange. A lifetime exactly equal to the maximum is
// allowed.
func CreateGrant(g Grant, opts CreateOptions) (Grant, error) {
	if err := g.Validate(); err != nil {
		return Grant{}, err
	}

	if opts.Now != nil {
		now := *opts.Now
		if !contract.ValidTimestamp(now) {
			return Grant{}, contract.Rangef("now must be a non-negative integer timestamp, got: %d", now)
		}
		if g.IssuedAt > now {
			return Grant{}, contract.Rangef("issuedAt cannot be in the future relative to now; issuedAt=%d, now=%d", g.IssuedAt, now)
		}
	}

	if g.ExpiresAt <= g.IssuedAt {
		return Grant{}, contract.Rangef("expiresAt must be greater than issuedAt; issuedAt=%d, expiresAt=%d", g.IssuedAt, g.ExpiresAt)
	}

	maxLifetime := opts.MaxLifetimeMs
	if maxLifetime == 0 {
		maxLifetime = DefaultMaxGrantLifetime
	}
	if maxLifetime < 0 {
		return Grant{}, contract.Rangef("maxLifetimeMs must be a positive integer, got: %d", maxLifetime)
	}
	if lifetime := g.ExpiresAt - g.IssuedAt; lifetime > maxLifetime {
		return Grant{}, contract.Rangef("grant lifetime %dms exceeds maxLifetimeMs %dms", lifetime, maxLifetime)
	}

	created := g.clone()
	created.Scopes = dedupeScopes(created.Scopes)
	return created, nil
}

func dedupeScopes(scopes []Scope) []Scope {
	seen := make(map[Scope]bool, len(scopes))
	unique := scopes[:0]
	for _, scope := range scopes {
		if seen[scope] {
			continue
		}
		seen[scope] = true
		unique = append(unique, scope)
	}
	return unique
}

// RevokeGrant returns a copy of prior with grantID revoked at
// revokedAt. An existing revocation is only ever moved earlier.
func RevokeGrant(grantID string, revokedAt int64, prior Revocations) (Revocations, error) {
	if grantID == "" {
		return nil, contract.Invalidf("grantId must be a non-empty string")
	}
	if !contract.ValidTimestamp(revokedAt) {
		return nil, contract.Rangef("revokedAt must be a non-negative integer timestamp, got: %d", revokedAt)
	}

	next := prior.Clone()
	if existing, ok := next[grantID]; !ok || revokedAt < existing {
		next[grantID] = revokedAt
	}
	return next, nil
}

// CheckOptions carries the per-action evidence for
// CanPerformDelegated.
type CheckOptions struct {
	// Assertion, when set, must match the grant and be issued at the
	// action time.
	Assertion *Assertion

	// Revocations is consulted for the grant's revocation instant.
	Revocations Revocations

	// ActionTime defaults to now. Any other value is denied.
	ActionTime *int64

	// HighImpactApprovedAt is the instant a human approved this
	// action. Required, and must equal the action time, for
	// high-impact scopes.
	HighImpactApprovedAt *int64
}

// Result is an authorization decision. Reason is set when Allowed is
// false.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func deny(format string, args ...any) Result {
	return Result{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// CanPerformDelegated decides whether g authorizes scope at now.
// Gates run in a fixed order and the first failure is returned.
func CanPerformDelegated(g Grant, scope Scope, now int64, opts CheckOptions) Result {
	if !contract.ValidTimestamp(now) {
		return deny("now must be a non-negative integer timestamp, got: %d", now)
	}

	actionTime := now
	if opts.ActionTime != nil {
		actionTime = *opts.ActionTime
	}
	if !contract.ValidTimestamp(actionTime) {
		return deny("actionTime must be a non-negative integer timestamp, got: %d", actionTime)
	}
	if actionTime != now {
		return deny("delegation must be validated at action time (TOCTOU guard)")
	}

	if g.Validate() != nil {
		return deny("invalid delegation grant")
	}
	if !scope.Valid() {
		return deny("invalid required scope")
	}

	if revokedAt, ok := opts.Revocations[g.GrantID]; ok {
		if !contract.ValidTimestamp(revokedAt) {
			return deny("revokedAt timestamp must be a non-negative integer, got: %d", revokedAt)
		}
		if actionTime >= revokedAt {
			return deny("grant is revoked")
		}
	}

	if actionTime < g.IssuedAt {
		return deny("grant is not active yet")
	}
	if actionTime >= g.ExpiresAt {
		return deny("grant is expired")
	}

	if !g.HasScope(scope) {
		return deny("scope %q is not granted", scope)
	}

	if opts.Assertion != nil {
		if result, ok := checkAssertion(g, *opts.Assertion, actionTime); !ok {
			return result
		}
	}

	if highImpact, _ := IsHighImpact(scope); highImpact {
		approvedAt := opts.HighImpactApprovedAt
		if approvedAt == nil {
			return deny("high-impact scope requires explicit human approval")
		}
		if !contract.ValidTimestamp(*approvedAt) {
			return deny("highImpactApprovedAt must be a non-negative integer timestamp, got: %d", *approvedAt)
		}
		if *approvedAt != actionTime {
			return deny("high-impact approval must be bound to the action timestamp (TOCTOU guard)")
		}
	}

	return Result{Allowed: true}
}

func checkAssertion(g Grant, assertion Assertion, actionTime int64) (Result, bool) {
	switch {
	case assertion.Validate() != nil:
		return deny("invalid on-behalf-of assertion"), false
	case assertion.PrincipalNullifier != g.PrincipalNullifier:
		return deny("assertion principalNullifier does not match grant"), false
	case assertion.FamiliarID != g.FamiliarID:
		return deny("assertion familiarId does not match grant"), false
	case assertion.GrantID != g.GrantID:
		return deny("assertion grantId does not match grant"), false
	case assertion.IssuedAt < g.IssuedAt || assertion.IssuedAt >= g.ExpiresAt:
		return deny("assertion issuedAt is outside the grant validity window"), false
	case assertion.IssuedAt != actionTime:
		return deny("assertion must be bound to the action timestamp (TOCTOU guard)"), false
	}
	return Result{}, true
}
