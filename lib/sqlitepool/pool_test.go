// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vhc-foundation/luma/lib/sqlitepool"
)

const counterSchema = `
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

func openTestPool(t *testing.T) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 4,
		Schema:   counterSchema,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}

func readCounter(t *testing.T, pool *sqlitepool.Pool, name string) int64 {
	t.Helper()
	var value int64
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM counters WHERE name = ?", &sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnInt64(0)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return value
}

func increment(conn *sqlite.Conn, name string) error {
	var current int64
	err := sqlitex.Execute(conn, "SELECT value FROM counters WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{name},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			current = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return err
	}
	return sqlitex.Execute(conn,
		"INSERT INTO counters (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		&sqlitex.ExecOptions{Args: []any{name, current + 1}})
}

func TestOpenAppliesWAL(t *testing.T) {
	pool := openTestPool(t)
	var journalMode string
	err := pool.Read(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				journalMode = stmt.ColumnText(0)
				return nil
			},
		})
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
	}
}

func TestImmediateSerializesReadModifyWrite(t *testing.T) {
	pool := openTestPool(t)

	const writers = 16
	var waitGroup sync.WaitGroup
	failures := make(chan error, writers)
	for range writers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			err := pool.Immediate(context.Background(), func(conn *sqlite.Conn) error {
				return increment(conn, "hits")
			})
			if err != nil {
				failures <- err
			}
		}()
	}
	waitGroup.Wait()
	close(failures)
	for err := range failures {
		t.Error(err)
	}

	if got := readCounter(t, pool, "hits"); got != writers {
		t.Errorf("hits = %d, want %d (lost update)", got, writers)
	}
}

func TestImmediateRollsBackOnError(t *testing.T) {
	pool := openTestPool(t)
	sentinel := errors.New("abort")

	err := pool.Immediate(context.Background(), func(conn *sqlite.Conn) error {
		if err := increment(conn, "rolled"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Immediate error = %v, want sentinel", err)
	}
	if got := readCounter(t, pool, "rolled"); got != 0 {
		t.Errorf("rolled = %d, want 0 after rollback", got)
	}
}

func TestOpenValidation(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Error("empty Path accepted")
	}
	if _, err := sqlitepool.Open(sqlitepool.Config{Path: ":memory:", PoolSize: 4}); err == nil {
		t.Error(":memory: with PoolSize 4 accepted")
	}
}

func TestTakeHonorsCancellation(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "cancel.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Take(ctx); err == nil {
		t.Fatal("Take succeeded with a cancelled context and no free connection")
	}
}
