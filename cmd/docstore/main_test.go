package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/docstore"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/logger"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestService(t *testing.T) *docstore.Service[bson.M] {
	t.Helper()
	conn := mock.New()
	require.NoError(t, conn.Seed("players",
		bson.M{"_id": "ada", "club": "oak", "rating": 1800},
		bson.M{"_id": "bob", "club": "elm", "rating": 1500},
		bson.M{"_id": "cyd", "club": "oak", "rating": 2100},
	))
	return docstore.NewService[bson.M](mock.NewCollection[bson.M](conn, "players"),
		docstore.WithLogger(logger.NewLogger(logger.TestConfig())))
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	t.Run("count", func(t *testing.T) {
		var out bytes.Buffer
		filter, err := parseDocument(`{"club": "oak"}`)
		require.NoError(t, err)
		require.NoError(t, execute(ctx, svc, "count", nil, filter, &out))
		assert.Equal(t, "2\n", out.String())
	})

	t.Run("find", func(t *testing.T) {
		var out bytes.Buffer
		err := execute(ctx, svc, "find", []string{"-page", "1", "-limit", "2", "-sort", `{"rating": -1}`}, bson.M{}, &out)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.JSONEq(t, `{"_id":"cyd","club":"oak","rating":2100}`, lines[0])
		assert.JSONEq(t, `{"_id":"ada","club":"oak","rating":1800}`, lines[1])
		assert.Equal(t, "# page 1 of 2, 3 total", lines[2])
	})

	t.Run("aggregate", func(t *testing.T) {
		var out bytes.Buffer
		filter := bson.M{"club": "oak"}
		err := execute(ctx, svc, "aggregate", []string{"-pipeline", `[{"$count": "n"}]`}, filter, &out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":2}`, out.String())
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, execute(ctx, svc, "drop", nil, bson.M{}, &bytes.Buffer{}))
	})
}

func TestParsePipeline(t *testing.T) {
	p, err := parsePipeline(`[{"$match": {"club": "oak"}}, {"$limit": 1}]`)
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, bson.M{"club": "oak"}, p[0]["$match"])

	_, err = parsePipeline(`{"not": "an array"}`)
	assert.Error(t, err)
}
