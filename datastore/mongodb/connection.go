/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongodb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/suparena/docstore/datastore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connection is a MongoDB client bound to one database.
type Connection struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ datastore.Connection = (*Connection)(nil)

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*Connection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return NewConnection(client, database), nil
}

// NewConnection wraps an existing client.
func NewConnection(client *mongo.Client, database string) *Connection {
	return &Connection{
		client: client,
		db:     client.Database(database),
	}
}

// Database returns the underlying database handle.
func (c *Connection) Database() *mongo.Database {
	return c.db
}

// StartSession starts a driver session.
func (c *Connection) StartSession(ctx context.Context) (datastore.Session, error) {
	sess, err := c.client.StartSession()
	if err != nil {
		return nil, err
	}
	return &Session{id: sessionID(sess), sess: sess}, nil
}

// Close disconnects the client.
func (c *Connection) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Session wraps a driver session.
type Session struct {
	id   string
	sess mongo.Session
}

var _ datastore.Session = (*Session)(nil)

func (s *Session) ID() string {
	return s.id
}

// WithTransaction runs fn in a driver transaction. The driver retries fn on
// transient transaction errors.
func (s *Session) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := s.sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Session) EndSession(ctx context.Context) {
	s.sess.EndSession(ctx)
}

// sessionID renders the logical session id; it falls back to a random UUID.
func sessionID(sess mongo.Session) string {
	if lsid := sess.ID(); lsid != nil {
		if val, err := lsid.LookupErr("id"); err == nil {
			if _, data, ok := val.BinaryOK(); ok {
				if id, err := uuid.FromBytes(data); err == nil {
					return id.String()
				}
			}
		}
	}
	return uuid.NewString()
}

// bind returns a context that runs driver calls under sess.
func bind(ctx context.Context, sess datastore.Session) (context.Context, error) {
	if sess == nil {
		return ctx, nil
	}
	s, ok := sess.(*Session)
	if !ok {
		return nil, fmt.Errorf("mongodb: session of type %T was not issued by this driver", sess)
	}
	return mongo.NewSessionContext(ctx, s.sess), nil
}

func findOptions(sort bson.D, skip, limit int64) *options.FindOptions {
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return opts
}
