// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/sqlitepool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS delegation_state (
	key        TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLitePersister stores delegation state in a SQLite database.
type SQLitePersister struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

// OpenSQLitePersister opens (creating if needed) the database at path.
func OpenSQLitePersister(path string, poolSize int, stateClock clock.Clock, logger *slog.Logger) (*SQLitePersister, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: poolSize,
		Schema:   sqliteSchema,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if stateClock == nil {
		stateClock = clock.Real()
	}
	return &SQLitePersister{pool: pool, clock: stateClock}, nil
}

// LoadState implements Persister.
func (s *SQLitePersister) LoadState(ctx context.Context, principal string) ([]byte, error) {
	var data []byte
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT state FROM delegation_state WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{StorageKey(principal)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				data = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, data)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("registry: loading state: %w", err)
	}
	if data == nil {
		return nil, ErrNoState
	}
	return data, nil
}

// SaveState implements Persister.
func (s *SQLitePersister) SaveState(ctx context.Context, principal string, data []byte) error {
	return s.pool.Immediate(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO delegation_state (key, state, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{Args: []any{StorageKey(principal), data, clock.UnixMilli(s.clock)}})
		if err != nil {
			return fmt.Errorf("registry: saving state: %w", err)
		}
		return nil
	})
}

// Close releases the database.
func (s *SQLitePersister) Close() error {
	return s.pool.Close()
}
