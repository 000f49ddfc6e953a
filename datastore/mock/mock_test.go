/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TestEntity struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
	Rank int                `bson:"rank"`
}

func TestMockCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("BasicOperations", func(t *testing.T) {
		conn := mock.New()
		coll := mock.NewCollection[TestEntity](conn, "entities")

		created, err := coll.InsertMany(ctx, nil, []any{
			TestEntity{Name: "one", Rank: 1},
			bson.M{"name": "two", "rank": 2},
		})
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.False(t, created[0].ID.IsZero())
		assert.Equal(t, "two", created[1].Name)

		found, err := coll.FindOne(ctx, nil, bson.M{"_id": created[0].ID})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "one", found.Name)

		missing, err := coll.FindOne(ctx, nil, bson.M{"name": "nope"})
		require.NoError(t, err)
		assert.Nil(t, missing)

		updated, err := coll.FindOneAndUpdate(ctx, nil, bson.M{"name": "one"}, bson.M{"$inc": bson.M{"rank": 10}})
		require.NoError(t, err)
		assert.Equal(t, 11, updated.Rank)

		n, err := coll.UpdateMany(ctx, nil, bson.M{}, bson.M{"$set": bson.M{"name": "same"}})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		sorted, err := coll.Find(ctx, nil, bson.M{}, storagemodels.FindOptions{Sort: bson.D{{Key: "rank", Value: -1}}, Limit: 1})
		require.NoError(t, err)
		require.Len(t, sorted, 1)
		assert.Equal(t, 11, sorted[0].Rank)

		removed, err := coll.FindOneAndDelete(ctx, nil, bson.M{"rank": 2})
		require.NoError(t, err)
		assert.Equal(t, created[1].ID, removed.ID)

		deleted, err := coll.DeleteMany(ctx, nil, bson.M{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)
		assert.Empty(t, conn.Documents("entities"))
	})

	t.Run("DuplicateID", func(t *testing.T) {
		conn := mock.New()
		coll := mock.NewCollection[TestEntity](conn, "entities")
		id := primitive.NewObjectID()

		_, err := coll.InsertMany(ctx, nil, []any{TestEntity{ID: id}, TestEntity{ID: id}})
		assert.True(t, errors.IsAlreadyExists(err))
		assert.Empty(t, conn.Documents("entities"), "a failed batch must not be partially applied")
	})

	t.Run("FailureInjection", func(t *testing.T) {
		boom := stderrors.New("boom")
		conn := mock.New().WithFailure("entities", mock.OpCount, boom)
		coll := mock.NewCollection[TestEntity](conn, "entities")

		_, err := coll.Count(ctx, nil, bson.M{})
		assert.Same(t, boom, err)
		assert.Equal(t, 1, conn.Calls("entities", mock.OpCount))

		conn.ClearFailures()
		_, err = coll.Count(ctx, nil, bson.M{})
		assert.NoError(t, err)
	})

	t.Run("Aggregate", func(t *testing.T) {
		conn := mock.New()
		require.NoError(t, conn.Seed("entities",
			bson.M{"name": "a", "rank": 1},
			bson.M{"name": "b", "rank": 2},
		))
		coll := mock.NewCollection[TestEntity](conn, "entities")

		raw, err := coll.Aggregate(ctx, nil, storagemodels.Pipeline{
			{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$rank"}}},
		})
		require.NoError(t, err)
		require.Len(t, raw, 1)

		var out struct {
			Total int `bson:"total"`
		}
		require.NoError(t, bson.Unmarshal(raw[0], &out))
		assert.Equal(t, 3, out.Total)
	})
}

func TestMockTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("CommitPublishesWrites", func(t *testing.T) {
		conn := mock.New()
		coll := mock.NewCollection[TestEntity](conn, "entities")
		sess, err := conn.StartSession(ctx)
		require.NoError(t, err)
		defer sess.EndSession(ctx)

		err = sess.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := coll.InsertMany(ctx, sess, []any{TestEntity{Name: "tx"}})
			require.NoError(t, err)

			inside, err := coll.Count(ctx, sess, bson.M{})
			require.NoError(t, err)
			assert.EqualValues(t, 1, inside, "session sees its own writes")

			outside, err := coll.Count(ctx, nil, bson.M{})
			require.NoError(t, err)
			assert.EqualValues(t, 0, outside, "uncommitted writes are private")
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, conn.Documents("entities"), 1)
	})

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		conn := mock.New()
		coll := mock.NewCollection[TestEntity](conn, "entities")
		sess, err := conn.StartSession(ctx)
		require.NoError(t, err)
		defer sess.EndSession(ctx)

		boom := stderrors.New("boom")
		err = sess.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := coll.InsertMany(ctx, sess, []any{TestEntity{Name: "tx"}})
			require.NoError(t, err)
			return boom
		})
		assert.Same(t, boom, err)
		assert.Empty(t, conn.Documents("entities"))
	})

	t.Run("SessionLifecycle", func(t *testing.T) {
		conn := mock.New()
		coll := mock.NewCollection[TestEntity](conn, "entities")
		sess, err := conn.StartSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, conn.OpenSessions())
		assert.NotEmpty(t, sess.ID())

		err = sess.WithTransaction(ctx, func(ctx context.Context) error {
			return sess.WithTransaction(ctx, func(context.Context) error { return nil })
		})
		assert.ErrorIs(t, err, errors.ErrTransactionInProgress)

		sess.EndSession(ctx)
		sess.EndSession(ctx)
		assert.Equal(t, 0, conn.OpenSessions())

		_, err = coll.Count(ctx, sess, bson.M{})
		assert.ErrorIs(t, err, errors.ErrSessionEnded)
		assert.ErrorIs(t, sess.WithTransaction(ctx, func(context.Context) error { return nil }), errors.ErrSessionEnded)
	})

	t.Run("ForeignSession", func(t *testing.T) {
		other, err := mock.New().StartSession(ctx)
		require.NoError(t, err)

		coll := mock.NewCollection[TestEntity](mock.New(), "entities")
		_, err = coll.Count(ctx, other, bson.M{})
		assert.True(t, errors.IsValidationError(err))
	})
}
