// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package constituency

import (
	"encoding/json"
	"strings"
	"testing"
)

func validProof() *Proof {
	return &Proof{DistrictHash: "d1", Nullifier: "n1", MerkleRoot: Root("root-abc")}
}

func TestVerifyProof(t *testing.T) {
	tests := []struct {
		name  string
		proof *Proof
		want  Result
	}{
		{"valid", validProof(), Result{Valid: true}},
		{"nil proof", nil, fail(MalformedProof)},
		{"empty district", &Proof{Nullifier: "n1", MerkleRoot: Root("r")}, fail(MalformedProof)},
		{"empty nullifier", &Proof{DistrictHash: "d1", MerkleRoot: Root("r")}, fail(MalformedProof)},
		{"absent root", &Proof{DistrictHash: "d1", Nullifier: "n1"}, fail(MalformedProof)},
		{"wrong nullifier", &Proof{DistrictHash: "d1", Nullifier: "wrong", MerkleRoot: Root("r")}, fail(NullifierMismatch)},
		{"wrong district", &Proof{DistrictHash: "d2", Nullifier: "n1", MerkleRoot: Root("r")}, fail(DistrictMismatch)},
		{"district case differs", &Proof{DistrictHash: "D1", Nullifier: "n1", MerkleRoot: Root("r")}, fail(DistrictMismatch)},
		{"empty root", &Proof{DistrictHash: "d1", Nullifier: "n1", MerkleRoot: Root("")}, fail(StaleProof)},
		{"blank root", &Proof{DistrictHash: "d1", Nullifier: "n1", MerkleRoot: Root(" \t\n")}, fail(StaleProof)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := VerifyProof(test.proof, "n1", "d1"); got != test.want {
				t.Errorf("VerifyProof = %+v, want %+v", got, test.want)
			}
		})
	}
}

func TestVerifyProofOrdering(t *testing.T) {
	// Each proof carries every defect from its position onward; the
	// earliest check must win.
	tests := []struct {
		name  string
		proof *Proof
		want  ErrorCode
	}{
		{"malformed beats nullifier", &Proof{DistrictHash: "", Nullifier: "wrong", MerkleRoot: Root("")}, MalformedProof},
		{"nullifier beats district", &Proof{DistrictHash: "d9", Nullifier: "wrong", MerkleRoot: Root("")}, NullifierMismatch},
		{"district beats stale", &Proof{DistrictHash: "d9", Nullifier: "n1", MerkleRoot: Root("  ")}, DistrictMismatch},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := VerifyProof(test.proof, "n1", "d1")
			if got.Valid || got.Error != test.want {
				t.Errorf("VerifyProof = %+v, want error %q", got, test.want)
			}
		})
	}
}

func TestVerifyProofReplayIsAccepted(t *testing.T) {
	proof := validProof()
	for attempt := range 3 {
		if got := VerifyProof(proof, "n1", "d1"); !got.Valid {
			t.Fatalf("attempt %d: VerifyProof = %+v, want valid", attempt, got)
		}
	}
}

func TestProofJSONNullRootIsMalformed(t *testing.T) {
	var proof Proof
	if err := json.Unmarshal([]byte(`{"district_hash":"d1","nullifier":"n1","merkle_root":null}`), &proof); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := VerifyProof(&proof, "n1", "d1"); got.Error != MalformedProof {
		t.Errorf("VerifyProof = %+v, want %q", got, MalformedProof)
	}
}

func TestProofRef(t *testing.T) {
	first := ProofRef(*validProof())
	if !strings.HasPrefix(first, "pref-") || len(first) != len("pref-")+32 {
		t.Fatalf("ProofRef = %q, want pref- plus 32 hex chars", first)
	}
	if again := ProofRef(*validProof()); again != first {
		t.Errorf("ProofRef not stable: %q vs %q", first, again)
	}

	other := validProof()
	other.MerkleRoot = Root("root-def")
	if ProofRef(*other) == first {
		t.Error("different roots produced the same reference")
	}
	if strings.Contains(first, "n1") {
		t.Errorf("reference %q leaks the nullifier", first)
	}
}

func TestProofRefFieldBoundaries(t *testing.T) {
	// The separator keeps "ab"+"c" distinct from "a"+"bc".
	left := Proof{DistrictHash: "ab", Nullifier: "c", MerkleRoot: Root("r")}
	right := Proof{DistrictHash: "a", Nullifier: "bc", MerkleRoot: Root("r")}
	if ProofRef(left) == ProofRef(right) {
		t.Error("field boundaries collapsed")
	}
}
