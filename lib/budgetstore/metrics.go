// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package budgetstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Consume outcomes recorded in luma_budget_consume_total.
const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)

type metrics struct {
	consumeTotal  *prometheus.CounterVec
	reinitialized prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)
	return &metrics{
		consumeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luma_budget_consume_total",
				Help: "Budget consume attempts by action key and outcome.",
			},
			[]string{"action", "outcome"},
		),
		reinitialized: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "luma_budget_reinitialized_total",
				Help: "Stored budgets discarded as invalid and reinitialized.",
			},
		),
	}
}
