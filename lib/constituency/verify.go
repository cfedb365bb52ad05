// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package constituency

import "strings"

// Proof is a constituency proof as emitted by the proof service.
// MerkleRoot is a pointer because absence and emptiness are reported
// differently: an absent root is malformed, a blank one is stale.
type Proof struct {
	DistrictHash string  `json:"district_hash"`
	Nullifier    string  `json:"nullifier"`
	MerkleRoot   *string `json:"merkle_root"`
}

// ErrorCode identifies the first check a proof failed.
type ErrorCode string

const (
	MalformedProof    ErrorCode = "malformed_proof"
	NullifierMismatch ErrorCode = "nullifier_mismatch"
	DistrictMismatch  ErrorCode = "district_mismatch"
	StaleProof        ErrorCode = "stale_proof"
)

// Result is the outcome of VerifyProof. Error is empty when Valid.
type Result struct {
	Valid bool      `json:"valid"`
	Error ErrorCode `json:"error,omitempty"`
}

func fail(code ErrorCode) Result {
	return Result{Valid: false, Error: code}
}

// VerifyProof checks that proof is well formed and bound to the
// expected nullifier and district. It never panics and never returns
// an error; every defect is a Result.
func VerifyProof(proof *Proof, expectedNullifier, expectedDistrictHash string) Result {
	if proof == nil || proof.DistrictHash == "" || proof.Nullifier == "" || proof.MerkleRoot == nil {
		return fail(MalformedProof)
	}
	if proof.Nullifier != expectedNullifier {
		return fail(NullifierMismatch)
	}
	if proof.DistrictHash != expectedDistrictHash {
		return fail(DistrictMismatch)
	}
	if strings.TrimSpace(*proof.MerkleRoot) == "" {
		return fail(StaleProof)
	}
	return Result{Valid: true}
}

// Root returns a pointer to root, for building proofs in code.
func Root(root string) *string {
	return &root
}
