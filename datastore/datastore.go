/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
)

// Session is an open transactional session issued by a Connection.
type Session interface {
	// ID identifies the session in logs and metrics.
	ID() string

	// WithTransaction runs fn inside a transaction bound to this session.
	// The transaction commits when fn returns nil and rolls back otherwise;
	// fn's error is returned unchanged.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// EndSession releases the session. Ending an ended session is a no-op.
	EndSession(ctx context.Context)
}

// Connection opens sessions against a backend.
type Connection interface {
	StartSession(ctx context.Context) (Session, error)

	Close(ctx context.Context) error
}

// Collection is the per-entity driver surface the CRUD layer is built on.
// Every method accepts the session to bind to; a nil session runs unscoped.
// Single-document lookups return (nil, nil) when nothing matches.
type Collection[T any] interface {
	Name() string

	FindOne(ctx context.Context, sess Session, filter bson.M) (*T, error)

	Find(ctx context.Context, sess Session, filter bson.M, opts storagemodels.FindOptions) ([]T, error)

	Count(ctx context.Context, sess Session, filter bson.M) (int64, error)

	Exists(ctx context.Context, sess Session, filter bson.M) (bool, error)

	// InsertMany inserts docs, assigning an _id where absent, and returns the
	// created entities in input order.
	InsertMany(ctx context.Context, sess Session, docs []any) ([]T, error)

	// FindOneAndUpdate applies update to the first match and returns the post-update document.
	FindOneAndUpdate(ctx context.Context, sess Session, filter bson.M, update bson.M) (*T, error)

	// UpdateMany applies update to every match and returns the matched count.
	UpdateMany(ctx context.Context, sess Session, filter bson.M, update bson.M) (int64, error)

	// FindOneAndDelete removes the first match and returns it.
	FindOneAndDelete(ctx context.Context, sess Session, filter bson.M) (*T, error)

	// DeleteMany removes every match and returns the deleted count.
	DeleteMany(ctx context.Context, sess Session, filter bson.M) (int64, error)

	Aggregate(ctx context.Context, sess Session, pipeline storagemodels.Pipeline) ([]bson.Raw, error)
}
