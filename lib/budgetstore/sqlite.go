// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budgetstore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/codec"
	"github.com/vhc-foundation/luma/lib/sqlitepool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS budgets (
	nullifier  TEXT PRIMARY KEY,
	budget     BLOB NOT NULL,
	date       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteConfig configures a SQLite store.
type SQLiteConfig struct {
	Path     string
	PoolSize int
	Clock    clock.Clock
	Logger   *slog.Logger
}

// SQLite stores CBOR-encoded budgets in a local SQLite database.
type SQLite struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

// OpenSQLite opens (creating if needed) the budget database at
// cfg.Path.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Schema:   sqliteSchema,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("budgetstore: %w", err)
	}
	storeClock := cfg.Clock
	if storeClock == nil {
		storeClock = clock.Real()
	}
	return &SQLite{pool: pool, clock: storeClock}, nil
}

// Load implements Store.
func (s *SQLite) Load(ctx context.Context, nullifier string) (*budget.NullifierBudget, error) {
	var stored *budget.NullifierBudget
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		stored, err = selectBudget(conn, nullifier)
		return err
	})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNotFound
	}
	return stored, nil
}

// Update implements Store.
func (s *SQLite) Update(ctx context.Context, nullifier string, fn UpdateFunc) (*budget.NullifierBudget, error) {
	var result *budget.NullifierBudget
	err := s.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		current, err := currentForUpdate(selectBudget(conn, nullifier))
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return errNilBudget
		}
		result = next
		if next == current {
			return nil
		}
		return s.upsert(conn, nullifier, next)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

func selectBudget(conn *sqlite.Conn, nullifier string) (*budget.NullifierBudget, error) {
	var data []byte
	err := sqlitex.Execute(conn, "SELECT budget FROM budgets WHERE nullifier = ?", &sqlitex.ExecOptions{
		Args: []any{nullifier},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("budgetstore: selecting budget: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return decodeBudget(nullifier, data)
}

func (s *SQLite) upsert(conn *sqlite.Conn, nullifier string, next *budget.NullifierBudget) error {
	data, err := codec.Marshal(next)
	if err != nil {
		return fmt.Errorf("budgetstore: encoding budget: %w", err)
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO budgets (nullifier, budget, date, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(nullifier) DO UPDATE SET
			budget = excluded.budget,
			date = excluded.date,
			updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{nullifier, data, next.Date, clock.UnixMilli(s.clock)}})
	if err != nil {
		return fmt.Errorf("budgetstore: writing budget: %w", err)
	}
	return nil
}
