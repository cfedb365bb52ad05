// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package budget enforces per-identity daily action quotas.
//
// A [NullifierBudget] holds the limits and the day's usage for one
// nullifier. Every transition returns a new value and leaves its
// input untouched:
//
//   - [Rollover] starts a new day: usage is cleared, limits carry
//     over (shared, not copied), and a budget already on the requested
//     date is returned as-is.
//   - [Consume] increments usage for one action key, and for keys
//     with a per-topic cap, the count for the topic.
//
// [CanConsume] is the preflight check. The global daily limit is
// checked before the per-topic cap, so when both would fail the
// reason names the daily limit. Reason strings are stable; the user
// interface switches on them.
//
// These functions hold no state. Two requests that read the same
// budget can both pass CanConsume and both write a consumed copy,
// exceeding the limit. The stores in lib/budgetstore serialize
// writers per nullifier to prevent that.
package budget
