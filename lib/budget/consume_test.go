// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budget

import (
	"errors"
	"math"
	"testing"

	"github.com/vhc-foundation/luma/lib/contract"
)

func consumeN(t *testing.T, budget *NullifierBudget, key ActionKey, n int, topic string) *NullifierBudget {
	t.Helper()
	for index := range n {
		next, err := Consume(budget, key, 1, topic)
		if err != nil {
			t.Fatalf("Consume #%d of %s: %v", index+1, key, err)
		}
		budget = next
	}
	return budget
}

func mustCheck(t *testing.T, budget *NullifierBudget, key ActionKey, amount int, topic string) Check {
	t.Helper()
	check, err := CanConsume(budget, key, amount, topic)
	if err != nil {
		t.Fatalf("CanConsume: %v", err)
	}
	return check
}

func TestDailyLimitReached(t *testing.T) {
	budget := consumeN(t, newBudget(t), Posts, 20, "")
	check := mustCheck(t, budget, Posts, 1, "")
	want := Check{Allowed: false, Reason: "Daily limit of 20 reached for posts/day"}
	if check != want {
		t.Errorf("CanConsume = %+v, want %+v", check, want)
	}

	_, err := Consume(budget, Posts, 1, "")
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("Consume error = %v, want ErrDenied", err)
	}
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.Reason != want.Reason || err.Error() != want.Reason {
		t.Errorf("Consume error = %v, want reason %q", err, want.Reason)
	}
}

func TestMonotonicSafety(t *testing.T) {
	for _, limit := range Season0Defaults() {
		budget := newBudget(t)
		var err error
		for {
			var next *NullifierBudget
			next, err = Consume(budget, limit.ActionKey, 1, "")
			if err != nil {
				break
			}
			budget = next
			usage, _ := budget.UsageFor(limit.ActionKey)
			if usage.Count > limit.DailyLimit {
				t.Fatalf("%s count %d exceeds limit %d", limit.ActionKey, usage.Count, limit.DailyLimit)
			}
		}
		usage, _ := budget.UsageFor(limit.ActionKey)
		if usage.Count != limit.DailyLimit {
			t.Errorf("%s stopped at %d, want %d", limit.ActionKey, usage.Count, limit.DailyLimit)
		}
		if !errors.Is(err, ErrDenied) {
			t.Errorf("%s: (limit+1)th consume error = %v, want ErrDenied", limit.ActionKey, err)
		}
	}
}

func TestAmountLargerThanRemaining(t *testing.T) {
	budget := consumeN(t, newBudget(t), CivicActions, 2, "")
	if check := mustCheck(t, budget, CivicActions, 2, ""); check.Allowed {
		t.Error("2 more civic actions allowed with 1 remaining")
	}
	if check := mustCheck(t, budget, CivicActions, 1, ""); !check.Allowed {
		t.Errorf("last civic action denied: %q", check.Reason)
	}
}

func TestPerTopicCap(t *testing.T) {
	budget := consumeN(t, newBudget(t), Analyses, 5, "topic-a")
	check := mustCheck(t, budget, Analyses, 1, "topic-a")
	if want := "Per-topic cap of 5 reached for analyses/day on topic topic-a"; check.Allowed || check.Reason != want {
		t.Errorf("CanConsume = %+v, want reason %q", check, want)
	}
	if check := mustCheck(t, budget, Analyses, 1, "topic-b"); !check.Allowed {
		t.Errorf("other topic denied: %q", check.Reason)
	}
	if check := mustCheck(t, budget, Analyses, 1, ""); !check.Allowed {
		t.Errorf("topic-less analysis denied: %q", check.Reason)
	}
}

func TestGlobalLimitBeatsTopicCap(t *testing.T) {
	budget := &NullifierBudget{
		Nullifier: "n1",
		Limits:    Season0Defaults(),
		Usage: []DailyUsage{{
			ActionKey:   Analyses,
			Count:       25,
			TopicCounts: map[string]int{"topic-a": 1},
			Date:        today,
		}},
		Date: today,
	}
	check := mustCheck(t, budget, Analyses, 1, "topic-a")
	if want := "Daily limit of 25 reached for analyses/day"; check.Reason != want {
		t.Errorf("reason = %q, want %q", check.Reason, want)
	}

	budget.Usage[0].TopicCounts["topic-a"] = 5
	check = mustCheck(t, budget, Analyses, 1, "topic-a")
	if want := "Daily limit of 25 reached for analyses/day"; check.Reason != want {
		t.Errorf("both exceeded: reason = %q, want %q", check.Reason, want)
	}
}

func TestTopicIgnoredWithoutCap(t *testing.T) {
	budget := consumeN(t, newBudget(t), Posts, 2, "topic-a")
	usage, ok := budget.UsageFor(Posts)
	if !ok || usage.Count != 2 {
		t.Fatalf("usage = %+v", usage)
	}
	if usage.TopicCounts != nil {
		t.Errorf("TopicCounts = %v, want nil for an uncapped key", usage.TopicCounts)
	}
}

func TestConsumeIsCopyOnWrite(t *testing.T) {
	original := newBudget(t)
	first, err := Consume(original, Analyses, 1, "topic-a")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	second, err := Consume(first, Analyses, 2, "topic-a")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	if len(original.Usage) != 0 {
		t.Errorf("original usage mutated: %+v", original.Usage)
	}
	firstUsage, _ := first.UsageFor(Analyses)
	if firstUsage.Count != 1 || firstUsage.TopicCounts["topic-a"] != 1 {
		t.Errorf("first budget mutated: %+v", firstUsage)
	}
	secondUsage, _ := second.UsageFor(Analyses)
	if secondUsage.Count != 3 || secondUsage.TopicCounts["topic-a"] != 3 {
		t.Errorf("second usage = %+v, want count 3 topic 3", secondUsage)
	}
	if secondUsage.Date != today {
		t.Errorf("usage date = %q, want %q", secondUsage.Date, today)
	}
}

func TestMissingLimit(t *testing.T) {
	budget := &NullifierBudget{Nullifier: "n1", Limits: []Limit{}, Usage: []DailyUsage{}, Date: today}
	check := mustCheck(t, budget, Shares, 1, "")
	if want := "No budget limit configured for shares/day"; check.Allowed || check.Reason != want {
		t.Errorf("CanConsume = %+v, want reason %q", check, want)
	}
	if _, err := Consume(budget, Shares, 1, ""); !errors.Is(err, ErrDenied) {
		t.Errorf("Consume error = %v, want ErrDenied", err)
	}
}

func TestNonPositiveAmount(t *testing.T) {
	budget := newBudget(t)
	for _, amount := range []int{0, -1} {
		_, err := CanConsume(budget, Posts, amount, "")
		if !errors.Is(err, contract.ErrRange) {
			t.Errorf("CanConsume(amount=%d) error = %v, want ErrRange", amount, err)
		}
		_, err = Consume(budget, Posts, amount, "")
		if !errors.Is(err, contract.ErrRange) || errors.Is(err, ErrDenied) {
			t.Errorf("Consume(amount=%d) error = %v, want ErrRange only", amount, err)
		}
	}
	_, err := Consume(budget, Posts, 0, "")
	if want := "amount must be a positive integer, got: 0"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestHugeAmountCannotWrapCount(t *testing.T) {
	budget := consumeN(t, newBudget(t), Posts, 1, "")

	check := mustCheck(t, budget, Posts, math.MaxInt, "")
	if check.Allowed {
		t.Fatalf("CanConsume(MaxInt) allowed with 19 posts left")
	}
	if _, err := Consume(budget, Posts, math.MaxInt, ""); !errors.Is(err, ErrDenied) {
		t.Fatalf("Consume(MaxInt) error = %v, want ErrDenied", err)
	}

	budget = consumeN(t, budget, Posts, 19, "")
	if _, err := Consume(budget, Posts, 1, ""); !errors.Is(err, ErrDenied) {
		t.Errorf("Consume after limit error = %v, want ErrDenied", err)
	}
	usage, _ := budget.UsageFor(Posts)
	if usage.Count != 20 {
		t.Errorf("count = %d, want 20", usage.Count)
	}

	check = mustCheck(t, budget, Analyses, math.MaxInt, "topic-a")
	if want := "Daily limit of 25 reached for analyses/day"; check.Reason != want {
		t.Errorf("reason = %q, want %q", check.Reason, want)
	}
}

func TestNilBudget(t *testing.T) {
	if _, err := CanConsume(nil, Posts, 1, ""); !errors.Is(err, contract.ErrInvalid) {
		t.Errorf("CanConsume(nil) error = %v, want ErrInvalid", err)
	}
	if _, err := Consume(nil, Posts, 1, ""); !errors.Is(err, contract.ErrInvalid) {
		t.Errorf("Consume(nil) error = %v, want ErrInvalid", err)
	}
}
