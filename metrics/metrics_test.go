/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Registry, labels ...string) float64 {
	t.Helper()
	var metric dto.Metric
	var err error
	if len(labels) == 1 {
		err = r.TransactionsTotal.WithLabelValues(labels...).Write(&metric)
	} else {
		err = r.OperationsTotal.WithLabelValues(labels...).Write(&metric)
	}
	require.NoError(t, err)
	return metric.GetCounter().GetValue()
}

func TestRecordOperation(t *testing.T) {
	r := NewRegistry("docstore")

	r.RecordOperation("users", "findOne", StatusOK, time.Millisecond)
	r.RecordOperation("users", "findOne", StatusOK, time.Millisecond)
	r.RecordOperation("users", "findOne", StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, r, "users", "findOne", StatusOK))
	assert.Equal(t, 1.0, counterValue(t, r, "users", "findOne", StatusNotFound))
}

func TestRecordTransaction(t *testing.T) {
	r := NewRegistry("docstore")

	r.RecordTransaction(OutcomeCommitted, 10*time.Millisecond)
	r.RecordTransaction(OutcomeAborted, 10*time.Millisecond)
	r.RecordTransaction(OutcomeNested, 0)

	assert.Equal(t, 1.0, counterValue(t, r, OutcomeCommitted))
	assert.Equal(t, 1.0, counterValue(t, r, OutcomeNested))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "docstore_transaction_duration_seconds" {
			assert.EqualValues(t, 2, mf.GetMetric()[0].GetHistogram().GetSampleCount())
			return
		}
	}
	t.Fatal("transaction duration histogram not gathered")
}

func TestActiveSessions(t *testing.T) {
	r := NewRegistry("docstore")
	r.SessionStarted()
	r.SessionStarted()
	r.SessionEnded()

	var metric dto.Metric
	require.NoError(t, r.ActiveSessions.Write(&metric))
	assert.Equal(t, 1.0, metric.GetGauge().GetValue())
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordOperation("users", "count", StatusOK, time.Millisecond)
		r.RecordTransaction(OutcomeCommitted, time.Millisecond)
		r.SessionStarted()
		r.SessionEnded()
	})
}
