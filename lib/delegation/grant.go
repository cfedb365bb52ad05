// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import "github.com/vhc-foundation/luma/lib/contract"

// DefaultMaxGrantLifetime is the longest a grant may live, in
// milliseconds, unless CreateOptions says otherwise.
const DefaultMaxGrantLifetime int64 = 24 * 60 * 60 * 1000

// Grant authorizes FamiliarID to act for PrincipalNullifier within
// Scopes during [IssuedAt, ExpiresAt). Timestamps are Unix
// milliseconds.
type Grant struct {
	GrantID            string  `json:"grantId"`
	PrincipalNullifier string  `json:"principalNullifier"`
	FamiliarID         string  `json:"familiarId"`
	Scopes             []Scope `json:"scopes"`
	IssuedAt           int64   `json:"issuedAt"`
	ExpiresAt          int64   `json:"expiresAt"`
	Signature          string  `json:"signature"`
}

// Assertion claims that one action, at IssuedAt, is performed under
// GrantID. It is built fresh for every action.
type Assertion struct {
	PrincipalNullifier string `json:"principalNullifier"`
	FamiliarID         string `json:"familiarId"`
	GrantID            string `json:"grantId"`
	IssuedAt           int64  `json:"issuedAt"`
	Signature          string `json:"signature"`
}

// Revocations maps grant IDs to the instant (Unix ms) they were
// revoked. Functions in this package never modify a Revocations they
// are given.
type Revocations map[string]int64

// Clone returns an independent copy of r. A nil r clones to an empty
// map.
func (r Revocations) Clone() Revocations {
	clone := make(Revocations, len(r))
	for grantID, revokedAt := range r {
		clone[grantID] = revokedAt
	}
	return clone
}

func requireString(value, field string) error {
	if value == "" {
		return contract.Invalidf("%s must be a non-empty string", field)
	}
	return nil
}

func requireTimestamp(value int64, field string) error {
	if !contract.ValidTimestamp(value) {
		return contract.Invalidf("%s must be a non-negative integer timestamp, got: %d", field, value)
	}
	return nil
}

// Validate checks the grant's shape: identifiers and signature
// present, at least one known scope, non-negative timestamps. It does
// not check lifetime bounds; CreateGrant does.
func (g Grant) Validate() error {
	for _, field := range []struct{ value, name string }{
		{g.GrantID, "grantId"},
		{g.PrincipalNullifier, "principalNullifier"},
		{g.FamiliarID, "familiarId"},
		{g.Signature, "signature"},
	} {
		if err := requireString(field.value, field.name); err != nil {
			return err
		}
	}
	if len(g.Scopes) == 0 {
		return contract.Invalidf("scopes must contain at least one scope")
	}
	for _, scope := range g.Scopes {
		if !scope.Valid() {
			return contract.Invalidf("invalid delegation scope: %q", scope)
		}
	}
	if err := requireTimestamp(g.IssuedAt, "issuedAt"); err != nil {
		return err
	}
	return requireTimestamp(g.ExpiresAt, "expiresAt")
}

// Validate checks the assertion's shape.
func (a Assertion) Validate() error {
	for _, field := range []struct{ value, name string }{
		{a.PrincipalNullifier, "principalNullifier"},
		{a.FamiliarID, "familiarId"},
		{a.GrantID, "grantId"},
		{a.Signature, "signature"},
	} {
		if err := requireString(field.value, field.name); err != nil {
			return err
		}
	}
	return requireTimestamp(a.IssuedAt, "issuedAt")
}

// HasScope reports whether g lists scope.
func (g Grant) HasScope(scope Scope) bool {
	for _, granted := range g.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}

// clone returns a copy of g with its own Scopes slice.
func (g Grant) clone() Grant {
	g.Scopes = append([]Scope(nil), g.Scopes...)
	return g
}
