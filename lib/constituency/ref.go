// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package constituency

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// refDomainKey is the BLAKE3 key for proof references: the ASCII
// domain name zero-padded to 32 bytes. Changing it changes every
// reference ever issued.
var refDomainKey = [32]byte{
	'l', 'u', 'm', 'a', '.', 'c', 'o', 'n', 's', 't', 'i', 't', 'u', 'e', 'n', 'c',
	'y', '.', 'p', 'r', 'o', 'o', 'f', '-', 'r', 'e', 'f', 0, 0, 0, 0, 0,
}

// refPrefix marks proof references in logs and stored records.
const refPrefix = "pref-"

// ProofRef returns a stable, opaque reference for proof: "pref-"
// followed by 32 hex characters. Two proofs with the same district,
// nullifier and root share a reference. An absent root hashes as
// empty.
func ProofRef(proof Proof) string {
	root := ""
	if proof.MerkleRoot != nil {
		root = *proof.MerkleRoot
	}

	hasher, err := blake3.NewKeyed(refDomainKey[:])
	if err != nil {
		panic("constituency: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.WriteString(proof.DistrictHash)
	hasher.WriteString("|")
	hasher.WriteString(proof.Nullifier)
	hasher.WriteString("|")
	hasher.WriteString(root)

	var digest [32]byte
	hasher.Sum(digest[:0])
	return refPrefix + hex.EncodeToString(digest[:16])
}
