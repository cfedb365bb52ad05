// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budget

import (
	"errors"
	"fmt"
	"maps"

	"github.com/vhc-foundation/luma/lib/contract"
)

// ErrDenied classifies Consume failures caused by an exhausted
// budget.
var ErrDenied = errors.New("budget: consumption denied")

// DeniedError reports why Consume refused. Its message is the same
// reason CanConsume returns.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

// Is reports ErrDenied as a match.
func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

func requireAmount(amount int) error {
	if amount <= 0 {
		return contract.Rangef("amount must be a positive integer, got: %d", amount)
	}
	return nil
}

// CanConsume reports whether amount more key actions fit in b. The
// daily limit is checked before the per-topic cap. An empty topicID
// skips the per-topic check. A non-positive amount or a nil budget is
// a contract violation.
func CanConsume(b *NullifierBudget, key ActionKey, amount int, topicID string) (Check, error) {
	if err := requireAmount(amount); err != nil {
		return Check{}, err
	}
	if b == nil {
		return Check{}, contract.Invalidf("budget must not be nil")
	}

	limit, ok := b.LimitFor(key)
	if !ok {
		return Check{Reason: fmt.Sprintf("No budget limit configured for %s", key)}, nil
	}

	usage, _ := b.UsageFor(key)
	if amount > limit.DailyLimit-usage.Count {
		return Check{Reason: fmt.Sprintf("Daily limit of %d reached for %s", limit.DailyLimit, key)}, nil
	}

	if topicID != "" && limit.PerTopicCap != nil {
		if amount > *limit.PerTopicCap-usage.TopicCounts[topicID] {
			return Check{Reason: fmt.Sprintf("Per-topic cap of %d reached for %s on topic %s", *limit.PerTopicCap, key, topicID)}, nil
		}
	}

	return Check{Allowed: true}, nil
}

// Consume returns a copy of b with amount more key actions recorded.
// A refusal is a *DeniedError. Topic counts are kept only for keys
// whose limit has a per-topic cap; otherwise topicID is ignored.
func Consume(b *NullifierBudget, key ActionKey, amount int, topicID string) (*NullifierBudget, error) {
	check, err := CanConsume(b, key, amount, topicID)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, &DeniedError{Reason: check.Reason}
	}

	limit, _ := b.LimitFor(key)
	trackTopic := topicID != "" && limit.PerTopicCap != nil

	next := *b
	next.Usage = make([]DailyUsage, len(b.Usage), len(b.Usage)+1)
	copy(next.Usage, b.Usage)

	index := b.usageIndex(key)
	if index < 0 {
		next.Usage = append(next.Usage, DailyUsage{ActionKey: key, Date: b.Date})
		index = len(next.Usage) - 1
	}

	updated := next.Usage[index]
	updated.Count += amount
	if trackTopic {
		topics := make(map[string]int, len(updated.TopicCounts)+1)
		maps.Copy(topics, updated.TopicCounts)
		topics[topicID] += amount
		updated.TopicCounts = topics
	}
	next.Usage[index] = updated

	return &next, nil
}
