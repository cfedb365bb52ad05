// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSeedSize is the smallest principal seed DeriveSigningKey accepts.
const MinSeedSize = 32

// Key purposes for DeriveSigningKey.
const (
	PurposeGrant     = "grant"
	PurposeAssertion = "assertion"
)

// DeriveSigningKey derives an Ed25519 key from a principal's seed.
// The HKDF info string is "luma.delegation.<purpose>:<id>", so the
// principal's grant key (purpose "grant", id = nullifier) and each
// familiar's assertion key (purpose "assertion", id = familiar ID)
// are independent but reproducible from the one seed.
func DeriveSigningKey(seed []byte, purpose, id string) (ed25519.PrivateKey, error) {
	if len(seed) < MinSeedSize {
		return nil, fmt.Errorf("delegation: seed has %d bytes, want at least %d", len(seed), MinSeedSize)
	}
	if purpose == "" || id == "" {
		return nil, fmt.Errorf("delegation: key purpose and id are required")
	}

	info := []byte("luma.delegation." + purpose + ":" + id)
	reader := hkdf.New(sha256.New, seed, nil, info)
	keySeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, keySeed); err != nil {
		return nil, fmt.Errorf("delegation: HKDF key derivation failed: %w", err)
	}
	return ed25519.NewKeyFromSeed(keySeed), nil
}
