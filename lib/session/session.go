// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package session answers lifecycle questions about sessions minted by
// the external session authority: has it expired, is it about to.
//
// An ExpiresAt of zero means the session never expires. Sessions
// persisted before expiry tracking existed carry no timestamps at all;
// [MigrateFields] maps them onto that never-expires state.
package session

import (
	"math"

	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/contract"
)

const (
	// NearExpiryWindow is the default lead time, in milliseconds, for
	// IsNearExpiry.
	NearExpiryWindow int64 = 24 * 60 * 60 * 1000

	// DefaultTTL is the lifetime, in milliseconds, the session
	// authority assigns to new sessions.
	DefaultTTL int64 = 7 * 24 * 60 * 60 * 1000

	// MaxScaledTrustScore is the upper bound of ScaledTrustScore.
	MaxScaledTrustScore = 10000
)

// Response is a session as issued by the session authority.
type Response struct {
	Token            string  `json:"token"`
	TrustScore       float64 `json:"trustScore"`
	ScaledTrustScore int     `json:"scaledTrustScore"`
	Nullifier        string  `json:"nullifier"`
	CreatedAt        int64   `json:"createdAt"`
	ExpiresAt        int64   `json:"expiresAt"`
}

// Stored is a session as read back from storage, where CreatedAt and
// ExpiresAt may be missing.
type Stored struct {
	Token            string  `json:"token"`
	TrustScore       float64 `json:"trustScore"`
	ScaledTrustScore int     `json:"scaledTrustScore"`
	Nullifier        string  `json:"nullifier"`
	CreatedAt        *int64  `json:"createdAt,omitempty"`
	ExpiresAt        *int64  `json:"expiresAt,omitempty"`
}

// IsExpired reports whether s has expired according to c.
func IsExpired(s Response, c clock.Clock) bool {
	return IsExpiredAt(s, clock.UnixMilli(c))
}

// IsExpiredAt reports whether s has expired at now. The expiry
// instant itself counts as expired.
func IsExpiredAt(s Response, now int64) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return now >= s.ExpiresAt
}

// IsNearExpiry reports whether s expires within the default window
// according to c.
func IsNearExpiry(s Response, c clock.Clock) bool {
	return IsNearExpiryAt(s, clock.UnixMilli(c), NearExpiryWindow)
}

// IsNearExpiryAt reports whether s is still live at now but expires
// within windowMs. The boundary is inclusive. A non-positive windowMs
// selects NearExpiryWindow.
func IsNearExpiryAt(s Response, now, windowMs int64) bool {
	if windowMs <= 0 {
		windowMs = NearExpiryWindow
	}
	if s.ExpiresAt == 0 || IsExpiredAt(s, now) {
		return false
	}
	return s.ExpiresAt-now <= windowMs
}

// MigrateFields converts a stored session to a Response, filling
// missing timestamps with zero.
func MigrateFields(s Stored) Response {
	response := Response{
		Token:            s.Token,
		TrustScore:       s.TrustScore,
		ScaledTrustScore: s.ScaledTrustScore,
		Nullifier:        s.Nullifier,
	}
	if s.CreatedAt != nil {
		response.CreatedAt = *s.CreatedAt
	}
	if s.ExpiresAt != nil {
		response.ExpiresAt = *s.ExpiresAt
	}
	return response
}

// Validate checks that s is a session the authority could have
// issued.
func Validate(s Response) error {
	if s.Token == "" {
		return contract.Invalidf("token must be a non-empty string")
	}
	if s.Nullifier == "" {
		return contract.Invalidf("nullifier must be a non-empty string")
	}
	if math.IsNaN(s.TrustScore) || s.TrustScore < 0 || s.TrustScore > 1 {
		return contract.Rangef("trustScore must be within [0, 1], got: %v", s.TrustScore)
	}
	if s.ScaledTrustScore < 0 || s.ScaledTrustScore > MaxScaledTrustScore {
		return contract.Rangef("scaledTrustScore must be within [0, %d], got: %d", MaxScaledTrustScore, s.ScaledTrustScore)
	}
	if !contract.ValidTimestamp(s.CreatedAt) {
		return contract.Rangef("createdAt must be a non-negative integer timestamp, got: %d", s.CreatedAt)
	}
	if !contract.ValidTimestamp(s.ExpiresAt) {
		return contract.Rangef("expiresAt must be a non-negative integer timestamp, got: %d", s.ExpiresAt)
	}
	return nil
}
