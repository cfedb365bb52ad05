// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package gate admits or refuses a gated civic action.
//
// A [Gate] chains the four identity checks in a fixed order, all at a
// single instant read once from its clock:
//
//  1. proof: the constituency proof must be bound to the session's
//     nullifier and the expected district.
//  2. session: the session must be well formed and unexpired. A
//     session inside its near-expiry window passes with a warning.
//  3. delegation: only when a familiar acts for the principal. The
//     grant must belong to the session's principal, carry a valid
//     signature when a verifier is configured, and authorize the
//     action's scope at that instant.
//  4. budget: the action's daily budget is consumed (Admit) or only
//     checked (Preflight) through a [budgetstore.Governor].
//
// The first failing stage decides. Policy denials come back as a
// [Decision]; an error means the request itself was malformed (an
// unknown action, a negative amount) or a store failed.
//
// Actions without a budget key (draft, triage, fund) skip stage 4.
package gate
