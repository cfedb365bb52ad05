// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budgetstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/vhc-foundation/luma/lib/budget"
)

// PostgresConfig configures a Postgres store.
type PostgresConfig struct {
	// DSN is a lib/pq connection string.
	DSN string

	// Table is the budget table name. Default "luma_budgets".
	Table string

	// MaxOpenConns bounds the connection pool. Default 10.
	MaxOpenConns int

	Logger *slog.Logger
}

// Postgres stores budgets as JSONB rows, one per nullifier.
type Postgres struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// OpenPostgres connects, verifies the connection, and creates the
// budget table if it does not exist.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("budgetstore: postgres DSN is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("budgetstore: opening postgres: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)

	store, err := NewPostgres(db, cfg.Table, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("budgetstore: postgres ping: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	store.logger.Info("postgres budget store ready", "table", store.table)
	return store, nil
}

// NewPostgres wraps an open database handle. Call Migrate before
// first use if the table may not exist.
func NewPostgres(db *sql.DB, table string, logger *slog.Logger) (*Postgres, error) {
	if table == "" {
		table = "luma_budgets"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{db: db, table: pq.QuoteIdentifier(table), logger: logger}, nil
}

// Migrate creates the budget table.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			nullifier  TEXT PRIMARY KEY,
			budget     JSONB NOT NULL,
			date       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.table))
	if err != nil {
		return fmt.Errorf("budgetstore: creating %s: %w", p.table, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) selectBudget(ctx context.Context, q queryer, nullifier string) (*budget.NullifierBudget, error) {
	var data []byte
	err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT budget FROM %s WHERE nullifier = $1", p.table), nullifier).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("budgetstore: selecting budget: %w", err)
	}
	var stored budget.NullifierBudget
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, nullifier, err)
	}
	return &stored, nil
}

// Load implements Store.
func (p *Postgres) Load(ctx context.Context, nullifier string) (*budget.NullifierBudget, error) {
	return p.selectBudget(ctx, p.db, nullifier)
}

// Update implements Store. A transaction-scoped advisory lock keyed
// on the nullifier serializes writers, including the first writer
// for a nullifier that has no row yet.
func (p *Postgres) Update(ctx context.Context, nullifier string, fn UpdateFunc) (result *budget.NullifierBudget, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("budgetstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				p.logger.Warn("budget transaction rollback failed", "nullifier", nullifier, "error", rollbackErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", nullifier); err != nil {
		return nil, fmt.Errorf("budgetstore: locking %s: %w", nullifier, err)
	}

	current, err := p.selectBudget(ctx, tx, nullifier)
	if errors.Is(err, ErrNotFound) {
		current, err = nil, nil
	}
	current, err = currentForUpdate(current, err)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		err = errNilBudget
		return nil, err
	}

	if next != current {
		data, marshalErr := json.Marshal(next)
		if marshalErr != nil {
			err = fmt.Errorf("budgetstore: encoding budget: %w", marshalErr)
			return nil, err
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (nullifier, budget, date, updated_at) VALUES ($1, $2, $3, now())
			ON CONFLICT (nullifier) DO UPDATE SET
				budget = EXCLUDED.budget,
				date = EXCLUDED.date,
				updated_at = EXCLUDED.updated_at`, p.table),
			nullifier, data, next.Date)
		if err != nil {
			return nil, fmt.Errorf("budgetstore: writing budget: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("budgetstore: commit: %w", err)
	}
	return next, nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	return p.db.Close()
}
