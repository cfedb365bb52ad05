// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package delegation

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/vhc-foundation/luma/lib/codec"
)

// Errors returned by signature verification.
var (
	ErrSignatureEncoding = errors.New("delegation: signature is not unpadded base64url Ed25519")
	ErrInvalidSignature  = errors.New("delegation: invalid Ed25519 signature")
)

// grantPayload is the signed portion of a Grant. Field numbers are
// fixed: renumbering invalidates every signature in circulation.
type grantPayload struct {
	GrantID            string  `cbor:"1,keyasint"`
	PrincipalNullifier string  `cbor:"2,keyasint"`
	FamiliarID         string  `cbor:"3,keyasint"`
	Scopes             []Scope `cbor:"4,keyasint"`
	IssuedAt           int64   `cbor:"5,keyasint"`
	ExpiresAt          int64   `cbor:"6,keyasint"`
}

type assertionPayload struct {
	PrincipalNullifier string `cbor:"1,keyasint"`
	FamiliarID         string `cbor:"2,keyasint"`
	GrantID            string `cbor:"3,keyasint"`
	IssuedAt           int64  `cbor:"4,keyasint"`
}

// GrantSigningBytes returns the bytes a grant signature covers.
func GrantSigningBytes(g Grant) ([]byte, error) {
	payload, err := codec.Marshal(grantPayload{
		GrantID:            g.GrantID,
		PrincipalNullifier: g.PrincipalNullifier,
		FamiliarID:         g.FamiliarID,
		Scopes:             g.Scopes,
		IssuedAt:           g.IssuedAt,
		ExpiresAt:          g.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("delegation: encoding grant payload: %w", err)
	}
	return payload, nil
}

// AssertionSigningBytes returns the bytes an assertion signature
// covers.
func AssertionSigningBytes(a Assertion) ([]byte, error) {
	payload, err := codec.Marshal(assertionPayload{
		PrincipalNullifier: a.PrincipalNullifier,
		FamiliarID:         a.FamiliarID,
		GrantID:            a.GrantID,
		IssuedAt:           a.IssuedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("delegation: encoding assertion payload: %w", err)
	}
	return payload, nil
}

// SignGrant returns a copy of g with Signature set. Any existing
// signature is replaced.
func SignGrant(privateKey ed25519.PrivateKey, g Grant) (Grant, error) {
	payload, err := GrantSigningBytes(g)
	if err != nil {
		return Grant{}, err
	}
	signed := g.clone()
	signed.Signature = encodeSignature(ed25519.Sign(privateKey, payload))
	return signed, nil
}

// VerifyGrantSignature checks g.Signature against publicKey.
func VerifyGrantSignature(publicKey ed25519.PublicKey, g Grant) error {
	payload, err := GrantSigningBytes(g)
	if err != nil {
		return err
	}
	return verify(publicKey, payload, g.Signature)
}

// SignAssertion returns a copy of a with Signature set.
func SignAssertion(privateKey ed25519.PrivateKey, a Assertion) (Assertion, error) {
	payload, err := AssertionSigningBytes(a)
	if err != nil {
		return Assertion{}, err
	}
	a.Signature = encodeSignature(ed25519.Sign(privateKey, payload))
	return a, nil
}

// VerifyAssertionSignature checks a.Signature against publicKey.
func VerifyAssertionSignature(publicKey ed25519.PublicKey, a Assertion) error {
	payload, err := AssertionSigningBytes(a)
	if err != nil {
		return err
	}
	return verify(publicKey, payload, a.Signature)
}

func encodeSignature(signature []byte) string {
	return base64.RawURLEncoding.EncodeToString(signature)
}

func verify(publicKey ed25519.PublicKey, payload []byte, encoded string) error {
	signature, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(signature) != ed25519.SignatureSize {
		return ErrSignatureEncoding
	}
	if len(publicKey) != ed25519.PublicKeySize || !ed25519.Verify(publicKey, payload, signature) {
		return ErrInvalidSignature
	}
	return nil
}
