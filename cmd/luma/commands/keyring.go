// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vhc-foundation/luma/lib/delegation"
)

const (
	keyringFile   = "keyring.json"
	publicKeyFile = "principal.pub"
)

// keyring is a principal's signing seed. Every signing key is derived
// from it: the grant key from the principal's nullifier and each
// familiar's assertion key from the familiar ID.
type keyring struct {
	Principal string `json:"principal"`
	Seed      string `json:"seed"`

	seed []byte
}

func newKeyring(principal string) (*keyring, error) {
	seed := make([]byte, delegation.MinSeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generating seed: %w", err)
	}
	return &keyring{
		Principal: principal,
		Seed:      base64.RawURLEncoding.EncodeToString(seed),
		seed:      seed,
	}, nil
}

// write stores the keyring (owner-only) and the principal's grant
// public key in dir.
func (k *keyring) write(dir string) (ed25519.PublicKey, error) {
	public, err := k.grantPublicKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, keyringFile), append(data, '\n'), 0600); err != nil {
		return nil, err
	}
	encoded := base64.RawURLEncoding.EncodeToString(public)
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), []byte(encoded+"\n"), 0644); err != nil {
		return nil, err
	}
	return public, nil
}

func readKeyring(dir string) (*keyring, error) {
	data, err := os.ReadFile(filepath.Join(dir, keyringFile))
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	var k keyring
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parsing keyring: %w", err)
	}
	if k.Principal == "" {
		return nil, fmt.Errorf("keyring in %s has no principal", dir)
	}
	if k.seed, err = base64.RawURLEncoding.DecodeString(k.Seed); err != nil {
		return nil, fmt.Errorf("keyring seed: %w", err)
	}
	return &k, nil
}

func (k *keyring) grantKey() (ed25519.PrivateKey, error) {
	return delegation.DeriveSigningKey(k.seed, delegation.PurposeGrant, k.Principal)
}

func (k *keyring) grantPublicKey() (ed25519.PublicKey, error) {
	private, err := k.grantKey()
	if err != nil {
		return nil, err
	}
	return private.Public().(ed25519.PublicKey), nil
}

func (k *keyring) assertionKey(familiarID string) (ed25519.PrivateKey, error) {
	return delegation.DeriveSigningKey(k.seed, delegation.PurposeAssertion, familiarID)
}
