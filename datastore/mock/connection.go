/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of the datastore contract for testing.
// Transactions are real: writes inside WithTransaction stay private to the session
// until commit and are discarded on rollback.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/query"
	"github.com/suparena/docstore/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Op names a driver operation for call counting and failure injection.
type Op string

const (
	OpFindOne          Op = "findOne"
	OpFind             Op = "find"
	OpCount            Op = "count"
	OpExists           Op = "exists"
	OpInsertMany       Op = "insertMany"
	OpFindOneAndUpdate Op = "findOneAndUpdate"
	OpUpdateMany       Op = "updateMany"
	OpFindOneAndDelete Op = "findOneAndDelete"
	OpDeleteMany       Op = "deleteMany"
	OpAggregate        Op = "aggregate"
	OpStartSession     Op = "startSession"
	OpCommit           Op = "commit"
)

// Connection is an in-memory document store. Collection contents are
// copy-on-write slices, so a snapshot is a shallow copy of the map.
type Connection struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
	calls       map[string]int
	failures    map[string]error
	open        int
	closed      bool
}

// New creates an empty in-memory Connection
func New() *Connection {
	return &Connection{
		collections: make(map[string][]bson.M),
		calls:       make(map[string]int),
		failures:    make(map[string]error),
	}
}

var _ datastore.Connection = (*Connection)(nil)

// StartSession opens a new session
func (c *Connection) StartSession(ctx context.Context) (datastore.Session, error) {
	if err := c.enter("", OpStartSession); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open++
	return &Session{id: uuid.NewString(), conn: c}, nil
}

// Close marks the connection closed; later sessions still work so tests can inspect state.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// WithFailure makes every call of op on collection return err.
// An empty collection applies to connection-level ops (startSession, commit).
func (c *Connection) WithFailure(collection string, op Op, err error) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[callKey(collection, op)] = err
	return c
}

// ClearFailures removes all injected failures
func (c *Connection) ClearFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = make(map[string]error)
}

// Calls returns how many times op was invoked on collection.
func (c *Connection) Calls(collection string, op Op) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[callKey(collection, op)]
}

// OpenSessions returns the number of started but not yet ended sessions
func (c *Connection) OpenSessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Seed inserts documents directly into committed state (for testing)
func (c *Connection) Seed(collection string, docs ...any) error {
	prepared := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		doc, err := prepareInsert(d)
		if err != nil {
			return err
		}
		prepared = append(prepared, doc)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := appendUnique(collection, c.collections[collection], prepared)
	if err != nil {
		return err
	}
	c.collections[collection] = next
	return nil
}

// Documents returns a copy of the committed documents of collection (for testing)
func (c *Connection) Documents(collection string) []bson.M {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := c.collections[collection]
	out := make([]bson.M, len(docs))
	copy(out, docs)
	return out
}

// Clear removes all data
func (c *Connection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections = make(map[string][]bson.M)
}

func callKey(collection string, op Op) string {
	return collection + "/" + string(op)
}

// enter records a call and returns the injected failure, if any.
func (c *Connection) enter(collection string, op Op) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := callKey(collection, op)
	c.calls[key]++
	return c.failures[key]
}

// read returns the documents of collection visible to sess.
func (c *Connection) read(sess datastore.Session, collection string) ([]bson.M, error) {
	s, err := c.session(sess)
	if err != nil {
		return nil, err
	}
	if s != nil {
		if docs, ok := s.read(collection); ok {
			return docs, nil
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collections[collection], nil
}

// write replaces the documents of collection with fn's result, inside the
// session's transaction when one is running.
func (c *Connection) write(sess datastore.Session, collection string, fn func([]bson.M) ([]bson.M, error)) error {
	s, err := c.session(sess)
	if err != nil {
		return err
	}
	if s != nil {
		if handled, err := s.write(collection, fn); handled {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fn(c.collections[collection])
	if err != nil {
		return err
	}
	c.collections[collection] = next
	return nil
}

func (c *Connection) session(sess datastore.Session) (*Session, error) {
	if sess == nil {
		return nil, nil
	}
	s, ok := sess.(*Session)
	if !ok || s.conn != c {
		return nil, errors.NewValidationError("session", "session was not issued by this connection")
	}
	if s.isEnded() {
		return nil, errors.ErrSessionEnded
	}
	return s, nil
}

func (c *Connection) snapshot() map[string][]bson.M {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]bson.M, len(c.collections))
	for k, v := range c.collections {
		out[k] = v
	}
	return out
}

func (c *Connection) commit(ws *workspace) error {
	if err := c.enter("", OpCommit); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range ws.dirty {
		c.collections[name] = ws.collections[name]
	}
	return nil
}

func (c *Connection) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open--
}

func prepareInsert(v any) (bson.M, error) {
	doc, err := datastore.ToDocument(v)
	if err != nil {
		return nil, err
	}
	doc = query.Clone(doc)
	datastore.EnsureID(doc)
	return doc, nil
}

func appendUnique(collection string, existing []bson.M, docs []bson.M) ([]bson.M, error) {
	seen := make(map[string]struct{}, len(existing)+len(docs))
	for _, d := range existing {
		seen[datastore.IDKey(d[datastore.IDField])] = struct{}{}
	}
	next := make([]bson.M, len(existing), len(existing)+len(docs))
	copy(next, existing)
	for _, d := range docs {
		key := datastore.IDKey(d[datastore.IDField])
		if _, dup := seen[key]; dup {
			return nil, errors.NewAlreadyExistsError(collection, key)
		}
		seen[key] = struct{}{}
		next = append(next, d)
	}
	return next, nil
}
