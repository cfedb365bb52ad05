// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package constituency verifies constituency proofs: claims, produced
// by an external proof service, that a nullifier belongs to a
// district.
//
// [VerifyProof] checks structure and binding only. It confirms the
// proof is well formed, names the requesting identity, names the
// expected district, and carries a merkle root. It does not verify
// merkle membership and keeps no memory of proofs it has seen: a
// valid proof presented again by the same identity verifies again.
// Replay defense belongs to a future proof format with nonces.
//
// Checks run in a fixed order and the first failure is reported:
//
//	malformed_proof > nullifier_mismatch > district_mismatch > stale_proof
//
// [ProofRef] derives an opaque reference for a proof so callers can
// log or persist which proof admitted an action without recording
// the nullifier itself.
package constituency
