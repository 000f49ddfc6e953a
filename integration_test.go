//go:build integration
// +build integration

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/docstore/bootstrap"
	"github.com/suparena/docstore/config"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/testmodels"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
)

// openIntegrationBackend opens whichever backend DOCSTORE_BACKEND selects,
// reading the rest of the settings from DOCSTORE_CONFIG and the environment.
func openIntegrationBackend(t *testing.T) *bootstrap.Backend {
	t.Helper()
	cfg, err := config.Load(os.Getenv("DOCSTORE_CONFIG"))
	if err != nil {
		t.Skipf("no usable configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	b, err := bootstrap.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestIntegration_RatingSystemLifecycle(t *testing.T) {
	ctx := context.Background()
	b := openIntegrationBackend(t)

	collection := fmt.Sprintf("ratingSystems_%d", time.Now().UnixNano())
	systems := bootstrap.OpenService[testmodels.RatingSystem](b, collection)
	tx := b.Transactions()

	t.Cleanup(func() { _, _ = systems.DeleteMany(context.Background(), bson.M{}) })

	t.Log("Creating rating systems in one transaction")
	err := tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
		_, err := systems.CreateMany(ctx,
			testmodels.NewRatingSystem("usta", "USTA NTRP"),
			testmodels.NewRatingSystem("utr", "Universal Tennis Rating"),
			testmodels.NewRatingSystem("wtn", "World Tennis Number"),
		)
		return err
	})
	require.NoError(t, err)

	n, err := systems.Count(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	t.Log("Paginating")
	page, err := systems.FindPage(ctx, bson.M{},
		storagemodels.WithPagination(1, 2),
		storagemodels.WithSort(bson.D{{Key: "_id", Value: 1}}),
	)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.EqualValues(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "usta", page.Data[0].ID)

	t.Log("Rolling back a failed transaction")
	boom := fmt.Errorf("boom")
	err = tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
		if _, err := systems.UpdateOne(ctx, "utr", bson.M{"$set": bson.M{"name": "UTR"}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rs, err := systems.FindOne(ctx, "utr", storagemodels.ThrowOnEmpty())
	require.NoError(t, err)
	assert.Equal(t, "Universal Tennis Rating", rs.Name)

	t.Log("Deleting")
	deleted, err := systems.DeleteOne(ctx, "wtn")
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, "World Tennis Number", deleted.Name)

	_, err = systems.FindOne(ctx, "wtn", storagemodels.ThrowOnEmpty())
	assert.True(t, errors.IsNotFound(err))
}
