/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transaction outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
	OutcomeNested    = "nested"
)

// Operation statuses
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// Registry holds docstore's metrics on its own prometheus registry
type Registry struct {
	OperationsTotal     *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration prometheus.Histogram
	ActiveSessions      prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates a Registry whose metric names start with namespace
func NewRegistry(namespace string) *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of CRUD operations",
		},
		[]string{"collection", "operation", "status"},
	)

	r.OperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "CRUD operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"collection", "operation"},
	)

	r.TransactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Total number of units of work by outcome",
		},
		[]string{"outcome"},
	)

	r.TransactionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_duration_seconds",
			Help:      "Duration of outermost units of work in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.ActiveSessions = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently owned by a unit of work",
		},
	)

	return r
}

// Gatherer exposes the underlying registry, e.g. for promhttp.HandlerFor
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordOperation records a CRUD operation
func (r *Registry) RecordOperation(collection, operation, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.OperationsTotal.WithLabelValues(collection, operation, status).Inc()
	r.OperationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordTransaction records the end of a unit of work. Nested units carry no duration.
func (r *Registry) RecordTransaction(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.TransactionsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeNested {
		r.TransactionDuration.Observe(duration.Seconds())
	}
}

// SessionStarted increments the active session gauge
func (r *Registry) SessionStarted() {
	if r == nil {
		return
	}
	r.ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge
func (r *Registry) SessionEnded() {
	if r == nil {
		return
	}
	r.ActiveSessions.Dec()
}
