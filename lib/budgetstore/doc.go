// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package budgetstore persists nullifier budgets and closes the
// read-modify-write race that the pure functions in lib/budget leave
// to their caller.
//
// Every [Store] implements Update, which hands the current budget for
// one nullifier to a callback and stores what the callback returns.
// While the callback runs, no other Update for the same nullifier can
// observe the old value:
//
//   - [Memory] holds a mutex per nullifier.
//   - [SQLite] runs the callback inside BEGIN IMMEDIATE.
//   - [Redis] uses WATCH/MULTI and re-runs the callback when another
//     writer changed the key first.
//   - [Postgres] takes a transaction-scoped advisory lock on the
//     nullifier before reading.
//
// The callback may run more than once (Redis retries), so it must be
// a pure function of its input.
//
// [Governor] is the policy layer on top of a store. It rolls budgets
// over to the clock's current UTC date, replaces corrupt records with
// fresh ones (logging a warning), and exposes Check (which records no usage) and
// Consume (serialized write). With a daily limit of L, any number of
// concurrent Consume calls for one nullifier yields exactly L
// successes.
package budgetstore
