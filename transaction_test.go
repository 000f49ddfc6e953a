/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/docstore"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/logger"
	"github.com/suparena/docstore/metrics"
	"github.com/suparena/docstore/txcontext"
	"go.mongodb.org/mongo-driver/bson"
)

type txFixture struct {
	conn  *mock.Connection
	users *docstore.Service[User]
	tx    *docstore.TransactionService
	logs  *bytes.Buffer
	reg   *metrics.Registry
}

func newTxFixture(t *testing.T) *txFixture {
	t.Helper()
	logs := &bytes.Buffer{}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: logs})
	reg := metrics.NewRegistry("test")
	conn := mock.New()
	return &txFixture{
		conn:  conn,
		users: docstore.NewService[User](mock.NewCollection[User](conn, "users"), docstore.WithLogger(log)),
		tx:    docstore.NewTransactionService(conn, docstore.WithLogger(log), docstore.WithMetrics(reg)),
		logs:  logs,
		reg:   reg,
	}
}

func TestTransactionService_Commit(t *testing.T) {
	f := newTxFixture(t)
	ctx := txcontext.WithStore(context.Background())

	err := f.tx.Run(ctx, func(ctx context.Context, sess datastore.Session) error {
		assert.Same(t, sess, txcontext.Get(ctx))

		_, err := f.users.Create(ctx, User{Name: "ada"})
		require.NoError(t, err)

		// Visible inside the transaction, invisible outside until commit.
		n, err := f.users.Count(ctx, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		assert.Empty(t, f.conn.Documents("users"))
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, f.conn.Documents("users"), 1)
	assert.Nil(t, txcontext.Get(ctx))
	assert.Zero(t, f.conn.OpenSessions())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.TransactionsTotal.WithLabelValues(metrics.OutcomeCommitted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.reg.ActiveSessions))
}

func TestTransactionService_Abort(t *testing.T) {
	f := newTxFixture(t)
	ctx := txcontext.WithStore(context.Background())
	boom := stderrors.New("boom")

	err := f.tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
		if _, err := f.users.Create(ctx, User{Name: "ada"}); err != nil {
			return err
		}
		return boom
	})

	assert.Same(t, boom, err)
	assert.Empty(t, f.conn.Documents("users"))
	assert.Nil(t, txcontext.Get(ctx))
	assert.Zero(t, f.conn.OpenSessions())
	assert.Contains(t, f.logs.String(), "transaction aborted")
	assert.Contains(t, f.logs.String(), "boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.TransactionsTotal.WithLabelValues(metrics.OutcomeAborted)))
}

func TestTransactionService_Nested(t *testing.T) {
	t.Run("Should reuse the outer session", func(t *testing.T) {
		f := newTxFixture(t)
		ctx := context.Background()

		err := f.tx.Run(ctx, func(ctx context.Context, outer datastore.Session) error {
			_, err := f.users.Create(ctx, User{Name: "outer"})
			require.NoError(t, err)

			err = f.tx.Run(ctx, func(ctx context.Context, inner datastore.Session) error {
				assert.Same(t, outer, inner)
				_, err := f.users.Create(ctx, User{Name: "inner"})
				return err
			})
			require.NoError(t, err)

			// Inner success does not commit, end or clear anything.
			assert.Same(t, outer, txcontext.Get(ctx))
			assert.Equal(t, 1, f.conn.OpenSessions())
			assert.Empty(t, f.conn.Documents("users"))
			return nil
		})
		require.NoError(t, err)

		assert.Len(t, f.conn.Documents("users"), 2)
		assert.Equal(t, 1, f.conn.Calls("", mock.OpStartSession))
		assert.Equal(t, 1, f.conn.Calls("", mock.OpCommit))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.TransactionsTotal.WithLabelValues(metrics.OutcomeNested)))
	})

	t.Run("Should abort the outer transaction on inner failure", func(t *testing.T) {
		f := newTxFixture(t)
		ctx := txcontext.WithStore(context.Background())
		boom := stderrors.New("inner failed")

		err := f.tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
			_, err := f.users.Create(ctx, User{Name: "outer"})
			require.NoError(t, err)

			return f.tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
				return boom
			})
		})

		assert.Same(t, boom, err)
		assert.Empty(t, f.conn.Documents("users"))
		assert.Nil(t, txcontext.Get(ctx))
		assert.Zero(t, f.conn.OpenSessions())
		assert.Zero(t, f.conn.Calls("", mock.OpCommit))
	})
}

func TestTransactionService_SequentialRuns(t *testing.T) {
	f := newTxFixture(t)
	ctx := txcontext.WithStore(context.Background())

	var sessions []datastore.Session
	for i := 0; i < 2; i++ {
		err := f.tx.Run(ctx, func(ctx context.Context, sess datastore.Session) error {
			sessions = append(sessions, sess)
			return nil
		})
		require.NoError(t, err)
	}

	require.Len(t, sessions, 2)
	assert.NotEqual(t, sessions[0].ID(), sessions[1].ID())
	assert.Zero(t, f.conn.OpenSessions())
}

func TestTransactionService_ConcurrentRuns(t *testing.T) {
	f := newTxFixture(t)
	ctx := txcontext.WithStore(context.Background())
	boom := stderrors.New("second unit failed")

	aStarted := make(chan struct{})
	bDone := make(chan struct{})
	var (
		wg         sync.WaitGroup
		errA, errB error
		idA, idB   string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errA = f.tx.Run(ctx, func(ctx context.Context, sess datastore.Session) error {
			idA = sess.ID()
			if _, err := f.users.Create(ctx, User{Name: "first"}); err != nil {
				return err
			}
			close(aStarted)
			<-bDone
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		defer close(bDone)
		<-aStarted
		errB = f.tx.Run(ctx, func(ctx context.Context, sess datastore.Session) error {
			idB = sess.ID()
			if _, err := f.users.Create(ctx, User{Name: "second"}); err != nil {
				return err
			}
			return boom
		})
	}()
	wg.Wait()

	require.NoError(t, errA)
	assert.Same(t, boom, errB)
	assert.NotEmpty(t, idA)
	assert.NotEqual(t, idA, idB)

	docs := f.conn.Documents("users")
	require.Len(t, docs, 1)
	assert.Equal(t, "first", docs[0]["name"])
	assert.Nil(t, txcontext.Get(ctx))
	assert.Zero(t, f.conn.OpenSessions())
	assert.Equal(t, 2, f.conn.Calls("", mock.OpStartSession))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.reg.TransactionsTotal.WithLabelValues(metrics.OutcomeNested)))
}

func TestTransactionService_ContextLogger(t *testing.T) {
	conn := mock.New()
	tx := docstore.NewTransactionService(conn)
	logs := &bytes.Buffer{}
	ctx := logger.ContextWithLogger(context.Background(),
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: logs}))

	err := tx.Run(ctx, func(context.Context, datastore.Session) error {
		return stderrors.New("rejected")
	})
	require.Error(t, err)
	assert.Contains(t, logs.String(), "transaction aborted")
	assert.Contains(t, logs.String(), "rejected")
}

func TestTransactionService_Failures(t *testing.T) {
	t.Run("Should surface session start failures", func(t *testing.T) {
		f := newTxFixture(t)
		boom := stderrors.New("no primary")
		f.conn.WithFailure("", mock.OpStartSession, boom)

		called := false
		err := f.tx.Run(context.Background(), func(context.Context, datastore.Session) error {
			called = true
			return nil
		})
		assert.Same(t, boom, err)
		assert.False(t, called)
	})

	t.Run("Should surface commit failures", func(t *testing.T) {
		f := newTxFixture(t)
		boom := stderrors.New("write conflict")
		f.conn.WithFailure("", mock.OpCommit, boom)
		ctx := txcontext.WithStore(context.Background())

		err := f.tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
			_, err := f.users.Create(ctx, User{Name: "ada"})
			return err
		})
		assert.Same(t, boom, err)
		assert.Empty(t, f.conn.Documents("users"))
		assert.Nil(t, txcontext.Get(ctx))
		assert.Zero(t, f.conn.OpenSessions())
		assert.Contains(t, f.logs.String(), "write conflict")
	})

	t.Run("Should clean up after a panic", func(t *testing.T) {
		f := newTxFixture(t)
		ctx := txcontext.WithStore(context.Background())

		assert.Panics(t, func() {
			_ = f.tx.Run(ctx, func(context.Context, datastore.Session) error {
				panic("unexpected")
			})
		})
		assert.Nil(t, txcontext.Get(ctx))
		assert.Zero(t, f.conn.OpenSessions())
	})
}

func TestRunWithResult(t *testing.T) {
	f := newTxFixture(t)
	ctx := context.Background()

	u, err := docstore.RunWithResult(ctx, f.tx, func(ctx context.Context, _ datastore.Session) (*User, error) {
		created, err := f.users.Create(ctx, User{Name: "ada"})
		if err != nil {
			return nil, err
		}
		return f.users.UpdateOne(ctx, created.ID, bson.M{"$set": bson.M{"active": true}})
	})
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.Active)

	boom := stderrors.New("boom")
	n, err := docstore.RunWithResult(ctx, f.tx, func(context.Context, datastore.Session) (int, error) {
		return 7, boom
	})
	assert.Same(t, boom, err)
	assert.Zero(t, n)
}

func TestTransactionService_Connection(t *testing.T) {
	f := newTxFixture(t)
	assert.Same(t, f.conn, f.tx.Connection())
}
