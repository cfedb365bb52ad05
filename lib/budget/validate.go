// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budget

import "github.com/vhc-foundation/luma/lib/contract"

// Validate checks that b is a well-formed budget record. Stores call
// it on every read; a budget that fails is treated as corrupt.
func Validate(b *NullifierBudget) error {
	if b == nil {
		return contract.Invalidf("budget must not be nil")
	}
	if b.Nullifier == "" {
		return contract.Invalidf("nullifier must be a non-empty string")
	}
	if !IsISODate(b.Date) {
		return contract.Invalidf("date must be ISO date YYYY-MM-DD, got: %q", b.Date)
	}
	for _, limit := range b.Limits {
		if !limit.ActionKey.Valid() {
			return contract.Invalidf("unknown action key %q in limits", limit.ActionKey)
		}
		if limit.DailyLimit < 0 {
			return contract.Rangef("dailyLimit for %s must be non-negative, got: %d", limit.ActionKey, limit.DailyLimit)
		}
		if limit.PerTopicCap != nil && *limit.PerTopicCap < 0 {
			return contract.Rangef("perTopicCap for %s must be non-negative, got: %d", limit.ActionKey, *limit.PerTopicCap)
		}
	}
	for _, usage := range b.Usage {
		if !usage.ActionKey.Valid() {
			return contract.Invalidf("unknown action key %q in usage", usage.ActionKey)
		}
		if usage.Count < 0 {
			return contract.Rangef("count for %s must be non-negative, got: %d", usage.ActionKey, usage.Count)
		}
		if !IsISODate(usage.Date) {
			return contract.Invalidf("usage date must be ISO date YYYY-MM-DD, got: %q", usage.Date)
		}
		for topic, count := range usage.TopicCounts {
			if topic == "" {
				return contract.Invalidf("topic ids in %s must be non-empty", usage.ActionKey)
			}
			if count < 0 {
				return contract.Rangef("topic count for %s on %s must be non-negative, got: %d", usage.ActionKey, topic, count)
			}
		}
	}
	return nil
}
