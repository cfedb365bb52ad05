// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budgetstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vhc-foundation/luma/lib/budget"
	"github.com/vhc-foundation/luma/lib/clock"
	"github.com/vhc-foundation/luma/lib/contract"
)

// GovernorConfig configures a Governor.
type GovernorConfig struct {
	// Clock supplies the budget day. Default clock.Real().
	Clock clock.Clock

	// Limits seeds newly initialized budgets. Default
	// budget.Season0Defaults().
	Limits []budget.Limit

	Logger *slog.Logger

	// Registerer receives the governor's metrics. When nil the
	// metrics go to a private registry.
	Registerer prometheus.Registerer
}

// Governor applies per-day budgets on top of a Store. Every call
// brings the stored budget to the clock's current UTC date first:
// absent budgets are initialized, stale ones rolled over, and
// invalid ones reinitialized with a warning.
type Governor struct {
	store   Store
	clock   clock.Clock
	limits  []budget.Limit
	logger  *slog.Logger
	metrics *metrics
}

// NewGovernor returns a Governor over store.
func NewGovernor(store Store, cfg GovernorConfig) (*Governor, error) {
	if store == nil {
		return nil, contract.Invalidf("budget store must not be nil")
	}
	limits := cfg.Limits
	if limits == nil {
		limits = budget.Season0Defaults()
	}
	probe, err := budget.InitializeWithLimits("probe", "2000-01-01", limits)
	if err != nil {
		return nil, err
	}
	if err := budget.Validate(probe); err != nil {
		return nil, err
	}

	governorClock := cfg.Clock
	if governorClock == nil {
		governorClock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	return &Governor{
		store:   store,
		clock:   governorClock,
		limits:  budget.CloneLimits(limits),
		logger:  logger,
		metrics: newMetrics(registerer),
	}, nil
}

// ensure returns current brought to date.
func (g *Governor) ensure(current *budget.NullifierBudget, nullifier, date string) (*budget.NullifierBudget, error) {
	if current == nil {
		return budget.InitializeWithLimits(nullifier, date, g.limits)
	}

	if err := budget.Validate(current); err != nil {
		g.logger.Warn("stored budget is invalid, reinitializing",
			"nullifier", nullifier,
			"error", err,
		)
		g.metrics.reinitialized.Inc()
		return budget.InitializeWithLimits(nullifier, date, g.limits)
	}
	if current.Nullifier != nullifier {
		g.logger.Warn("stored budget belongs to another nullifier, reinitializing",
			"nullifier", nullifier,
			"stored_nullifier", current.Nullifier,
		)
		g.metrics.reinitialized.Inc()
		return budget.InitializeWithLimits(nullifier, date, g.limits)
	}

	return budget.Rollover(current, date)
}

func requireNullifier(nullifier string) error {
	if nullifier == "" {
		return contract.Invalidf("nullifier must be a non-empty string")
	}
	return nil
}

// Ensure returns the nullifier's budget for today, persisting any
// initialization or rollover.
func (g *Governor) Ensure(ctx context.Context, nullifier string) (*budget.NullifierBudget, error) {
	if err := requireNullifier(nullifier); err != nil {
		return nil, err
	}
	date := clock.Date(g.clock)
	return g.store.Update(ctx, nullifier, func(current *budget.NullifierBudget) (*budget.NullifierBudget, error) {
		return g.ensure(current, nullifier, date)
	})
}

// Check reports whether amount more key actions fit in today's
// budget. It does not record usage.
func (g *Governor) Check(ctx context.Context, nullifier string, key budget.ActionKey, amount int, topicID string) (budget.Check, error) {
	current, err := g.Ensure(ctx, nullifier)
	if err != nil {
		return budget.Check{}, err
	}
	return budget.CanConsume(current, key, amount, topicID)
}

// Consume records amount key actions against today's budget and
// returns the budget now stored. A refusal is a *budget.DeniedError
// and leaves the stored budget unchanged.
func (g *Governor) Consume(ctx context.Context, nullifier string, key budget.ActionKey, amount int, topicID string) (*budget.NullifierBudget, error) {
	if err := requireNullifier(nullifier); err != nil {
		g.metrics.consumeTotal.WithLabelValues(string(key), outcomeError).Inc()
		return nil, err
	}
	date := clock.Date(g.clock)
	next, err := g.store.Update(ctx, nullifier, func(current *budget.NullifierBudget) (*budget.NullifierBudget, error) {
		today, err := g.ensure(current, nullifier, date)
		if err != nil {
			return nil, err
		}
		return budget.Consume(today, key, amount, topicID)
	})

	switch {
	case err == nil:
		g.metrics.consumeTotal.WithLabelValues(string(key), outcomeAllowed).Inc()
	case errors.Is(err, budget.ErrDenied):
		g.metrics.consumeTotal.WithLabelValues(string(key), outcomeDenied).Inc()
		g.logger.Debug("budget consume denied",
			"nullifier", nullifier,
			"action", key,
			"reason", err.Error(),
		)
	default:
		g.metrics.consumeTotal.WithLabelValues(string(key), outcomeError).Inc()
	}
	return next, err
}

// CheckModeration is Check for moderation/day.
func (g *Governor) CheckModeration(ctx context.Context, nullifier string, amount int) (budget.Check, error) {
	return g.Check(ctx, nullifier, budget.Moderation, amount, "")
}

// ConsumeModeration is Consume for moderation/day.
func (g *Governor) ConsumeModeration(ctx context.Context, nullifier string, amount int) (*budget.NullifierBudget, error) {
	return g.Consume(ctx, nullifier, budget.Moderation, amount, "")
}

// CheckCivicAction is Check for civic_actions/day.
func (g *Governor) CheckCivicAction(ctx context.Context, nullifier string, amount int) (budget.Check, error) {
	return g.Check(ctx, nullifier, budget.CivicActions, amount, "")
}

// ConsumeCivicAction is Consume for civic_actions/day.
func (g *Governor) ConsumeCivicAction(ctx context.Context, nullifier string, amount int) (*budget.NullifierBudget, error) {
	return g.Consume(ctx, nullifier, budget.CivicActions, amount, "")
}
