// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/vhc-foundation/luma/cmd/luma/cli"
	"github.com/vhc-foundation/luma/lib/budgetstore"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/config"
	"github.com/vhc-foundation/luma/lib/registry"
)

// stateFlags are the flags shared by every command that opens stored
// state.
type stateFlags struct {
	configPath string
	verbose    bool
}

func (f *stateFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "path to luma.yaml (default: $LUMA_CONFIG)")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
}

func (f *stateFlags) logger() *slog.Logger {
	return cli.NewCommandLogger(f.verbose)
}

// loadConfig loads and validates the configuration named by --config,
// falling back to LUMA_CONFIG.
func (f *stateFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the budget store the configuration names.
func openStore(ctx context.Context, cfg *config.Config, storeClock clock.Clock, logger *slog.Logger) (budgetstore.Store, error) {
	store := cfg.Budget.Store
	switch store.Backend {
	case config.BackendMemory:
		logger.Warn("memory budget store does not persist between invocations")
		return budgetstore.NewMemory(), nil
	case config.BackendSQLite:
		return budgetstore.OpenSQLite(budgetstore.SQLiteConfig{
			Path:     store.SQLite.Path,
			PoolSize: store.SQLite.PoolSize,
			Clock:    storeClock,
			Logger:   logger,
		})
	case config.BackendRedis:
		ttl, err := cfg.RedisTTL()
		if err != nil {
			return nil, err
		}
		return budgetstore.DialRedis(ctx, store.Redis.Addr, store.Redis.Password, store.Redis.DB, budgetstore.RedisConfig{
			KeyPrefix: store.Redis.KeyPrefix,
			TTL:       ttl,
			Clock:     storeClock,
			Logger:    logger,
		})
	case config.BackendPostgres:
		return budgetstore.OpenPostgres(ctx, budgetstore.PostgresConfig{
			DSN:    store.Postgres.DSN,
			Table:  store.Postgres.Table,
			Logger: logger,
		})
	}
	return nil, fmt.Errorf("unknown budget store backend %q", store.Backend)
}

// openGovernor opens the configured store and wraps it in a Governor.
// The caller closes the returned store.
func openGovernor(ctx context.Context, cfg *config.Config, governorClock clock.Clock, logger *slog.Logger) (*budgetstore.Governor, budgetstore.Store, error) {
	limits, err := cfg.BudgetLimits()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg, governorClock, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening budget store: %w", err)
	}
	governor, err := budgetstore.NewGovernor(store, budgetstore.GovernorConfig{
		Clock:  governorClock,
		Limits: limits,
		Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return governor, store, nil
}

// openRegistry opens the delegation registry database and hydrates
// principal's state. The caller closes the returned persister.
func openRegistry(ctx context.Context, cfg *config.Config, principal string, registryClock clock.Clock, logger *slog.Logger) (*registry.Registry, *registry.SQLitePersister, error) {
	maxLifetime, err := cfg.MaxGrantLifetimeMs()
	if err != nil {
		return nil, nil, err
	}
	persister, err := registry.OpenSQLitePersister(cfg.Registry.Path, 2, registryClock, logger)
	if err != nil {
		return nil, nil, err
	}
	familiars := registry.New(registry.Config{
		Persister:          persister,
		Clock:              registryClock,
		Logger:             logger,
		MaxGrantLifetimeMs: maxLifetime,
	})
	if err := familiars.SetActivePrincipal(ctx, principal); err != nil {
		persister.Close()
		return nil, nil, err
	}
	return familiars, persister, nil
}

// parseInstant parses --at: Unix milliseconds or an RFC 3339 time.
func parseInstant(value string) (time.Time, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms < 0 {
			return time.Time{}, fmt.Errorf("--at must be non-negative, got %d", ms)
		}
		return clock.FromMilli(ms), nil
	}
	instant, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be Unix milliseconds or RFC 3339, got %q", value)
	}
	return instant.UTC(), nil
}

// commandClock returns a clock pinned at --at, or the real clock.
func commandClock(at string) (clock.Clock, error) {
	if at == "" {
		return clock.Real(), nil
	}
	instant, err := parseInstant(at)
	if err != nil {
		return nil, err
	}
	return clock.Fake(instant), nil
}

// requireFlag reports a missing required flag.
func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
