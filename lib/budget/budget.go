// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budget

import (
	"regexp"

	"github.com/vhc-foundation/luma/lib/contract"
)

// ActionKey names a budgeted action class.
type ActionKey string

const (
	Posts           ActionKey = "posts/day"
	Comments        ActionKey = "comments/day"
	SentimentVotes  ActionKey = "sentiment_votes/day"
	GovernanceVotes ActionKey = "governance_votes/day"
	Moderation      ActionKey = "moderation/day"
	Analyses        ActionKey = "analyses/day"
	CivicActions    ActionKey = "civic_actions/day"
	Shares          ActionKey = "shares/day"
)

var actionKeys = []ActionKey{
	Posts, Comments, SentimentVotes, GovernanceVotes,
	Moderation, Analyses, CivicActions, Shares,
}

// ActionKeys returns the canonical action keys in canonical order.
func ActionKeys() []ActionKey {
	return append([]ActionKey(nil), actionKeys...)
}

// Valid reports whether k is a canonical action key.
func (k ActionKey) Valid() bool {
	for _, key := range actionKeys {
		if key == k {
			return true
		}
	}
	return false
}

// Limit is the daily quota for one action key. PerTopicCap, when set,
// additionally bounds the count for any single topic.
type Limit struct {
	ActionKey   ActionKey `json:"actionKey"`
	DailyLimit  int       `json:"dailyLimit"`
	PerTopicCap *int      `json:"perTopicCap,omitempty"`
}

// DailyUsage is the count of one action key on Date.
type DailyUsage struct {
	ActionKey   ActionKey      `json:"actionKey"`
	Count       int            `json:"count"`
	TopicCounts map[string]int `json:"topicCounts,omitempty"`
	Date        string         `json:"date"`
}

// NullifierBudget is one identity's limits and usage for Date.
type NullifierBudget struct {
	Nullifier string       `json:"nullifier"`
	Limits    []Limit      `json:"limits"`
	Usage     []DailyUsage `json:"usage"`
	Date      string       `json:"date"`
}

// Check is the outcome of CanConsume. Reason is set when Allowed is
// false.
type Check struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Cap returns a pointer to n, for building limits with a per-topic
// cap.
func Cap(n int) *int { return &n }

// Season0Defaults returns a fresh copy of the Season-0 limits.
func Season0Defaults() []Limit {
	return []Limit{
		{ActionKey: Posts, DailyLimit: 20},
		{ActionKey: Comments, DailyLimit: 50},
		{ActionKey: SentimentVotes, DailyLimit: 200},
		{ActionKey: GovernanceVotes, DailyLimit: 20},
		{ActionKey: Moderation, DailyLimit: 10},
		{ActionKey: Analyses, DailyLimit: 25, PerTopicCap: Cap(5)},
		{ActionKey: CivicActions, DailyLimit: 3},
		{ActionKey: Shares, DailyLimit: 10},
	}
}

// CloneLimits returns a deep copy of limits.
func CloneLimits(limits []Limit) []Limit {
	clone := make([]Limit, len(limits))
	for index, limit := range limits {
		clone[index] = limit
		if limit.PerTopicCap != nil {
			clone[index].PerTopicCap = Cap(*limit.PerTopicCap)
		}
	}
	return clone
}

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsISODate reports whether s has the YYYY-MM-DD shape. Only the
// shape is checked, matching the stored-record schema.
func IsISODate(s string) bool {
	return isoDatePattern.MatchString(s)
}

func requireISODate(date string) error {
	if !IsISODate(date) {
		return contract.Invalidf("asOfDate must be ISO date YYYY-MM-DD, got: %q", date)
	}
	return nil
}

// Initialize returns a new budget for nullifier on isoDate with the
// Season-0 limits and no usage.
func Initialize(nullifier, isoDate string) (*NullifierBudget, error) {
	return InitializeWithLimits(nullifier, isoDate, Season0Defaults())
}

// InitializeWithLimits is like Initialize with caller-supplied limits,
// which are deep-copied.
func InitializeWithLimits(nullifier, isoDate string, limits []Limit) (*NullifierBudget, error) {
	if nullifier == "" {
		return nil, contract.Invalidf("nullifier must be a non-empty string")
	}
	if err := requireISODate(isoDate); err != nil {
		return nil, err
	}
	return &NullifierBudget{
		Nullifier: nullifier,
		Limits:    CloneLimits(limits),
		Usage:     []DailyUsage{},
		Date:      isoDate,
	}, nil
}

// Rollover returns b unchanged when it is already on isoDate.
// Otherwise it returns a new budget for isoDate with no usage and the
// same Limits slice.
func Rollover(b *NullifierBudget, isoDate string) (*NullifierBudget, error) {
	if err := requireISODate(isoDate); err != nil {
		return nil, err
	}
	if b.Date == isoDate {
		return b, nil
	}
	return &NullifierBudget{
		Nullifier: b.Nullifier,
		Limits:    b.Limits,
		Usage:     []DailyUsage{},
		Date:      isoDate,
	}, nil
}

// LimitFor returns the limit configured for key.
func (b *NullifierBudget) LimitFor(key ActionKey) (Limit, bool) {
	for _, limit := range b.Limits {
		if limit.ActionKey == key {
			return limit, true
		}
	}
	return Limit{}, false
}

// UsageFor returns the usage recorded for key.
func (b *NullifierBudget) UsageFor(key ActionKey) (DailyUsage, bool) {
	index := b.usageIndex(key)
	if index < 0 {
		return DailyUsage{}, false
	}
	return b.Usage[index], true
}

// Remaining returns how many more key actions fit under the daily
// limit today. The second result is false when key has no limit.
func (b *NullifierBudget) Remaining(key ActionKey) (int, bool) {
	limit, ok := b.LimitFor(key)
	if !ok {
		return 0, false
	}
	used := 0
	if usage, ok := b.UsageFor(key); ok {
		used = usage.Count
	}
	return max(limit.DailyLimit-used, 0), true
}

func (b *NullifierBudget) usageIndex(key ActionKey) int {
	for index, usage := range b.Usage {
		if usage.ActionKey == key {
			return index
		}
	}
	return -1
}
