// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"unicode/utf8"

	"github.com/vhc-foundation/luma/lib/contract"
	"github.com/vhc-foundation/luma/lib/delegation"
)

// MaxLabelLength bounds a familiar's label, in runes.
const MaxLabelLength = 256

// Familiar is a software agent registered by a principal.
type Familiar struct {
	ID               string          `json:"id"`
	Label            string          `json:"label"`
	CreatedAt        int64           `json:"createdAt"`
	RevokedAt        *int64          `json:"revokedAt,omitempty"`
	CapabilityPreset delegation.Tier `json:"capabilityPreset"`
}

// Validate checks the familiar's shape.
func (f Familiar) Validate() error {
	if f.ID == "" {
		return contract.Invalidf("id must be a non-empty string")
	}
	length := utf8.RuneCountInString(f.Label)
	if length == 0 || length > MaxLabelLength {
		return contract.Invalidf("label must be 1 to %d characters, got %d", MaxLabelLength, length)
	}
	if !contract.ValidTimestamp(f.CreatedAt) {
		return contract.Rangef("createdAt must be a non-negative integer timestamp, got: %d", f.CreatedAt)
	}
	if f.RevokedAt != nil && !contract.ValidTimestamp(*f.RevokedAt) {
		return contract.Rangef("revokedAt must be a non-negative integer timestamp, got: %d", *f.RevokedAt)
	}
	if !f.CapabilityPreset.Valid() {
		return contract.Invalidf("invalid capability preset: %q", f.CapabilityPreset)
	}
	return nil
}

// RevokedBy reports whether the familiar is revoked at instant t.
func (f Familiar) RevokedBy(t int64) bool {
	return f.RevokedAt != nil && t >= *f.RevokedAt
}

// FamiliarInput describes a familiar to register. ID and CreatedAt
// are generated from the registry's ID source and clock when empty.
type FamiliarInput struct {
	ID               string
	Label            string
	CreatedAt        *int64
	CapabilityPreset delegation.Tier
}

// Status is a grant's lifecycle state at an instant.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)
