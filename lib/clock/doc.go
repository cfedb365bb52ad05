// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Every policy decision in this module is made against an explicit
// millisecond timestamp. Functions that default to "now" take a Clock
// and have an ...At variant that takes the timestamp directly, so
// tests (and replays) pin time exactly:
//
//	session.IsExpired(s, clock.Real())
//	session.IsExpiredAt(s, 1_700_000_000_000)
//
// In production, Real() reads the system clock. In tests, Fake()
// returns a clock that only moves when Advance or Set is called.
// Sleep on a fake clock advances it instead of blocking, which keeps
// retry loops (see the redis budget store) deterministic.
package clock
