// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import "github.com/vhc-foundation/luma/lib/contract"

// Scope is a class of action a grant can authorize.
type Scope string

const (
	ScopeDraft       Scope = "draft"
	ScopeTriage      Scope = "triage"
	ScopeAnalyze     Scope = "analyze"
	ScopePost        Scope = "post"
	ScopeComment     Scope = "comment"
	ScopeShare       Scope = "share"
	ScopeModerate    Scope = "moderate"
	ScopeVote        Scope = "vote"
	ScopeFund        Scope = "fund"
	ScopeCivicAction Scope = "civic_action"
)

// Tier groups scopes by the approval strength they require.
type Tier string

const (
	TierSuggest    Tier = "suggest"
	TierAct        Tier = "act"
	TierHighImpact Tier = "high-impact"
)

// tierScopes is the fixed tier partition. Every scope appears in
// exactly one tier.
var tierScopes = map[Tier][]Scope{
	TierSuggest:    {ScopeDraft, ScopeTriage},
	TierAct:        {ScopeAnalyze, ScopePost, ScopeComment, ScopeShare},
	TierHighImpact: {ScopeModerate, ScopeVote, ScopeFund, ScopeCivicAction},
}

var tierOrder = []Tier{TierSuggest, TierAct, TierHighImpact}

var scopeTier = func() map[Scope]Tier {
	index := make(map[Scope]Tier)
	for tier, scopes := range tierScopes {
		for _, scope := range scopes {
			index[scope] = tier
		}
	}
	return index
}()

// Tiers returns the tiers in increasing order of privilege.
func Tiers() []Tier {
	return append([]Tier(nil), tierOrder...)
}

// Scopes returns every scope, grouped by tier in tier order.
func Scopes() []Scope {
	var scopes []Scope
	for _, tier := range tierOrder {
		scopes = append(scopes, tierScopes[tier]...)
	}
	return scopes
}

// TierScopes returns the scopes belonging to tier, or nil for an
// unknown tier.
func TierScopes(tier Tier) []Scope {
	return append([]Scope(nil), tierScopes[tier]...)
}

// TierOf returns the tier containing scope.
func TierOf(scope Scope) (Tier, bool) {
	tier, ok := scopeTier[scope]
	return tier, ok
}

// Valid reports whether s is one of the canonical scopes.
func (s Scope) Valid() bool {
	_, ok := scopeTier[s]
	return ok
}

// Valid reports whether t is one of the canonical tiers.
func (t Tier) Valid() bool {
	_, ok := tierScopes[t]
	return ok
}

// Rank orders tiers by privilege: suggest 0, act 1, high-impact 2.
// Unknown tiers rank -1.
func (t Tier) Rank() int {
	for rank, tier := range tierOrder {
		if tier == t {
			return rank
		}
	}
	return -1
}

// Allows reports whether a familiar preset at tier t may hold scope.
// A tier allows its own scopes and those of every lower tier.
func (t Tier) Allows(scope Scope) bool {
	scopeRank := scopeTier[scope].Rank()
	return scope.Valid() && t.Valid() && scopeRank <= t.Rank()
}

// IsHighImpact reports whether scope requires contemporaneous human
// approval. An unknown scope is a contract violation.
func IsHighImpact(scope Scope) (bool, error) {
	tier, ok := TierOf(scope)
	if !ok {
		return false, contract.Invalidf("invalid delegation scope: %q", scope)
	}
	return tier == TierHighImpact, nil
}
