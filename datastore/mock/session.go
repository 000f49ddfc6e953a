/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"context"
	"sync"

	"github.com/suparena/docstore/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// workspace holds a transaction's private view of the store.
type workspace struct {
	collections map[string][]bson.M
	dirty       map[string]bool
}

// Session is an in-memory session
type Session struct {
	id   string
	conn *Connection

	mu    sync.Mutex
	tx    *workspace
	ended bool
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// WithTransaction runs fn against a private workspace and publishes its writes
// when fn succeeds.
func (s *Session) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	switch {
	case s.ended:
		s.mu.Unlock()
		return errors.ErrSessionEnded
	case s.tx != nil:
		s.mu.Unlock()
		return errors.ErrTransactionInProgress
	}
	ws := &workspace{collections: s.conn.snapshot(), dirty: make(map[string]bool)}
	s.tx = ws
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	active := s.tx == ws
	s.tx = nil
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if !active {
		return errors.ErrSessionEnded
	}
	return s.conn.commit(ws)
}

// EndSession ends the session, discarding any running transaction
func (s *Session) EndSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.tx = nil
	s.conn.release()
}

// InTransaction reports whether a transaction is running on the session
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

func (s *Session) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Session) read(collection string) ([]bson.M, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil, false
	}
	return s.tx.collections[collection], true
}

func (s *Session) write(collection string, fn func([]bson.M) ([]bson.M, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return false, nil
	}
	next, err := fn(s.tx.collections[collection])
	if err != nil {
		return true, err
	}
	s.tx.collections[collection] = next
	s.tx.dirty[collection] = true
	return true, nil
}
