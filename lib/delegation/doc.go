// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package delegation authorizes software agents ("familiars") to act
// on behalf of a verified human principal.
//
// A [Grant] is a signed, time-bounded authorization from a principal
// to one familiar for a fixed set of [Scope] values. Scopes are
// partitioned into three tiers ordered by the approval they demand:
//
//	suggest      draft, triage
//	act          analyze, post, comment, share
//	high-impact  moderate, vote, fund, civic_action
//
// Grants are never mutated. They end by natural expiry or by
// revocation, which is tracked outside the grant in a [Revocations]
// map owned by the caller. [RevokeGrant] returns a new map and only
// ever moves a revocation earlier.
//
// [CanPerformDelegated] is the authorization state machine. It is a
// preflight function: every defect, including malformed input, comes
// back as a denied [Result] with a stable reason string. Three
// independent bindings pin the decision to the instant the action
// happens:
//
//   - the decision time (now) must equal the action time;
//   - an on-behalf-of [Assertion], when supplied, must be issued at the
//     action time;
//   - a high-impact scope needs a human approval timestamp equal to the
//     action time.
//
// A decision cannot be computed early and reused later, and neither an
// assertion nor an approval can be replayed.
//
// # Signatures
//
// [SignGrant] and [SignAssertion] sign the deterministic CBOR encoding
// of every field except the signature with Ed25519 and store the
// signature as unpadded base64url. [DeriveSigningKey] derives the
// principal's grant key and each familiar's assertion key from one
// seed with HKDF-SHA256.
package delegation
