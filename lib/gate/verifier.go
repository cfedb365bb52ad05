// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"crypto/ed25519"
	"fmt"

	"github.com/vhc-foundation/luma/lib/delegation"
)

// RevocationSource supplies the current grant revocations.
// *registry.Registry satisfies it.
type RevocationSource interface {
	Revocations() delegation.Revocations
}

// StaticRevocations is a fixed RevocationSource.
type StaticRevocations delegation.Revocations

// Revocations implements RevocationSource.
func (s StaticRevocations) Revocations() delegation.Revocations {
	return delegation.Revocations(s).Clone()
}

// GrantVerifier checks a grant's signature.
type GrantVerifier interface {
	VerifyGrant(grant delegation.Grant) error
}

// AssertionVerifier checks an on-behalf-of assertion's signature.
type AssertionVerifier interface {
	VerifyAssertion(assertion delegation.Assertion) error
}

// KeyVerifier verifies grants against one principal key and
// assertions against per-familiar keys.
type KeyVerifier struct {
	Principal ed25519.PublicKey
	Familiars map[string]ed25519.PublicKey
}

// VerifyGrant implements GrantVerifier.
func (v KeyVerifier) VerifyGrant(grant delegation.Grant) error {
	return delegation.VerifyGrantSignature(v.Principal, grant)
}

// VerifyAssertion implements AssertionVerifier.
func (v KeyVerifier) VerifyAssertion(assertion delegation.Assertion) error {
	key, ok := v.Familiars[assertion.FamiliarID]
	if !ok {
		return fmt.Errorf("gate: no key for familiar %q", assertion.FamiliarID)
	}
	return delegation.VerifyAssertionSignature(key, assertion)
}
