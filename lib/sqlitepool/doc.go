// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the module's SQLite connection pool, shared by
// the sqlite budget store and the delegation registry's sqlite
// persister.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the same
// pragmas to every connection:
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=NORMAL: commits survive a process crash.
//   - busy_timeout=5000: writers queue for the write lock for up to
//     five seconds instead of failing with SQLITE_BUSY.
//   - temp_store=MEMORY.
//
// Callers that read-modify-write a record use [Pool.Immediate], which
// runs the callback inside BEGIN IMMEDIATE. SQLite grants the write
// lock at BEGIN, so two callers cannot both read the old value before
// either writes; this is how the sqlite budget store serializes
// consumers of the same nullifier.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/luma/budgets.db",
//	    Schema: schema,
//	    Logger: logger,
//	})
//	...
//	err = pool.Immediate(ctx, func(conn *sqlite.Conn) error {
//	    // SELECT, compute, UPSERT
//	})
package sqlitepool
