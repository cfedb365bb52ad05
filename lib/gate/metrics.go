// Copyright 2026 The LUMA Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"

	modeAdmit     = "admit"
	modePreflight = "preflight"
)

type metrics struct {
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)
	return &metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luma_gate_decisions_total",
				Help: "Gate decisions by deciding stage and outcome.",
			},
			[]string{"stage", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "luma_gate_admit_duration_seconds",
				Help:    "Time to reach a gate decision.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"mode"},
		),
	}
}
