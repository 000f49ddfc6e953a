/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package bootstrap

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/docstore"
	"github.com/suparena/docstore/config"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/datastore/testmodels"
	"github.com/suparena/docstore/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Log.Level = "disabled"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "bootstrap_test"
	return cfg
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("Should open the memory backend", func(t *testing.T) {
		b, err := Open(ctx, memoryConfig())
		require.NoError(t, err)
		defer b.Close(ctx)

		assert.Equal(t, config.BackendMemory, b.Kind)
		assert.IsType(t, &mock.Connection{}, b.Connection())
		assert.IsType(t, &mock.Collection[testmodels.RatingSystem]{}, OpenCollection[testmodels.RatingSystem](b, "ratingSystems"))
		assert.NotNil(t, b.Metrics)
	})

	t.Run("Should reject invalid configuration", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Backend = config.BackendMongoDB
		cfg.Mongo.URI = ""
		_, err := Open(ctx, cfg)
		assert.Error(t, err)
	})
}

func TestBackendServices(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, memoryConfig())
	require.NoError(t, err)
	defer b.Close(ctx)

	systems := OpenService[testmodels.RatingSystem](b, "ratingSystems")
	tx := b.Transactions()

	err = tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
		_, err := systems.CreateMany(ctx,
			testmodels.NewRatingSystem("oak", "Oakville"),
			testmodels.NewRatingSystem("elm", "Elmwood"),
		)
		return err
	})
	require.NoError(t, err)

	rs, err := systems.FindOne(ctx, "oak")
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Equal(t, "Oakville", rs.Name)
	assert.False(t, rs.CreatedAt.IsZero())

	n, err := systems.Count(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.Equal(t, 1.0, testutil.ToFloat64(b.Metrics.TransactionsTotal.WithLabelValues(metrics.OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Metrics.OperationsTotal.WithLabelValues("ratingSystems", "findOne", metrics.StatusOK)))
}

func TestOpenRegisteredService(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, memoryConfig())
	require.NoError(t, err)
	defer b.Close(ctx)

	systems, err := OpenRegisteredService[testmodels.RatingSystem](b)
	require.NoError(t, err)
	assert.Equal(t, "ratingSystems", systems.Name())

	again, err := OpenRegisteredService[testmodels.RatingSystem](b)
	require.NoError(t, err)
	assert.Same(t, systems, again)
	assert.Equal(t, []string{"ratingSystems"}, docstore.ListServices[testmodels.RatingSystem](b.Services))

	type unregistered struct{}
	_, err = OpenRegisteredService[unregistered](b)
	assert.Error(t, err)
}
