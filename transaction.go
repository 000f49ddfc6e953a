/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"time"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/logger"
	"github.com/suparena/docstore/metrics"
	"github.com/suparena/docstore/txcontext"
)

// UnitOfWork is the body of a transaction. ctx carries the active session
// in its slot; sess is the same session for callers that want it directly.
type UnitOfWork func(ctx context.Context, sess datastore.Session) error

// TransactionService runs units of work inside backend transactions and
// publishes the session through the context slot.
type TransactionService struct {
	conn    datastore.Connection
	log     logger.Logger
	metrics *metrics.Registry
}

// NewTransactionService creates a TransactionService on conn.
func NewTransactionService(conn datastore.Connection, opts ...Option) *TransactionService {
	o := newOptions(opts)
	return &TransactionService{
		conn:    conn,
		log:     o.log,
		metrics: o.metrics,
	}
}

// Connection returns the backend connection sessions are started on.
func (ts *TransactionService) Connection() datastore.Connection {
	return ts.conn
}

// Run executes fn inside a transaction.
//
// If ctx already carries an active session, fn joins it: it is called
// directly, its error is returned unchanged, and commit, abort and session
// teardown stay with the Run that started the session. Otherwise Run starts
// a session, publishes it in a fresh slot derived from ctx, commits when fn
// returns nil and aborts otherwise. Sibling Runs sharing ctx therefore get
// sessions of their own. The session is ended and the slot cleared on every
// path, and fn's error is returned as-is.
func (ts *TransactionService) Run(ctx context.Context, fn UnitOfWork) (err error) {
	if sess := txcontext.Get(ctx); sess != nil {
		ts.metrics.RecordTransaction(metrics.OutcomeNested, 0)
		return fn(ctx, sess)
	}

	start := time.Now()
	sess, err := ts.conn.StartSession(ctx)
	if err != nil {
		ts.logger(ctx).Error("failed to start session", "error", err)
		return err
	}
	log := ts.logger(ctx).With("session", sess.ID())
	ts.metrics.SessionStarted()
	ctx = txcontext.WithStore(ctx)
	txcontext.Set(ctx, sess)
	log.Debug("transaction started")

	defer func() {
		txcontext.Set(ctx, nil)
		sess.EndSession(context.WithoutCancel(ctx))
		ts.metrics.SessionEnded()
	}()

	err = sess.WithTransaction(ctx, func(txCtx context.Context) error {
		return fn(txCtx, sess)
	})
	if err != nil {
		log.Error("transaction aborted", "error", err)
		ts.metrics.RecordTransaction(metrics.OutcomeAborted, time.Since(start))
		return err
	}

	log.Debug("transaction committed")
	ts.metrics.RecordTransaction(metrics.OutcomeCommitted, time.Since(start))
	return nil
}

// logger returns the configured logger, falling back to the one carried by ctx.
func (ts *TransactionService) logger(ctx context.Context) logger.Logger {
	if ts.log != nil {
		return ts.log
	}
	return logger.FromContext(ctx)
}

// RunWithResult is Run for units of work that produce a value. The zero
// value of R is returned alongside any error.
func RunWithResult[R any](ctx context.Context, ts *TransactionService, fn func(ctx context.Context, sess datastore.Session) (R, error)) (R, error) {
	var result R
	err := ts.Run(ctx, func(ctx context.Context, sess datastore.Session) error {
		r, err := fn(ctx, sess)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
