/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mongodb

import (
	"context"
	"errors"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is a typed MongoDB collection
type Collection[T any] struct {
	coll *mongo.Collection
}

var _ datastore.Collection[struct{}] = (*Collection[struct{}])(nil)

// NewCollection returns the collection called name in conn's database
func NewCollection[T any](conn *Connection, name string) *Collection[T] {
	return &Collection[T]{coll: conn.db.Collection(name)}
}

// Name returns the collection name
func (c *Collection[T]) Name() string {
	return c.coll.Name()
}

// Raw returns the driver collection, e.g. for index management
func (c *Collection[T]) Raw() *mongo.Collection {
	return c.coll
}

func (c *Collection[T]) FindOne(ctx context.Context, sess datastore.Session, filter bson.M) (*T, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return nil, err
	}
	return decodeSingle[T](c.coll.FindOne(ctx, filter))
}

func (c *Collection[T]) Find(ctx context.Context, sess datastore.Session, filter bson.M, opts storagemodels.FindOptions) ([]T, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return nil, err
	}
	cur, err := c.coll.Find(ctx, filter, findOptions(opts.Sort, opts.Skip, opts.Limit))
	if err != nil {
		return nil, err
	}
	results := make([]T, 0)
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Collection[T]) Count(ctx context.Context, sess datastore.Session, filter bson.M) (int64, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return 0, err
	}
	return c.coll.CountDocuments(ctx, filter)
}

func (c *Collection[T]) Exists(ctx context.Context, sess datastore.Session, filter bson.M) (bool, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return false, err
	}
	n, err := c.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertMany inserts docs in order. Documents without an _id get a new
// ObjectID before the write so the created entities can be returned as sent.
func (c *Collection[T]) InsertMany(ctx context.Context, sess datastore.Session, docs []any) ([]T, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return nil, err
	}
	prepared := make([]any, 0, len(docs))
	for _, d := range docs {
		doc, err := datastore.ToDocument(d)
		if err != nil {
			return nil, err
		}
		datastore.EnsureID(doc)
		prepared = append(prepared, doc)
	}
	if _, err := c.coll.InsertMany(ctx, prepared, options.InsertMany().SetOrdered(true)); err != nil {
		return nil, err
	}

	created := make([]T, 0, len(prepared))
	for _, p := range prepared {
		entity, err := datastore.FromDocument[T](p.(bson.M))
		if err != nil {
			return nil, err
		}
		created = append(created, *entity)
	}
	return created, nil
}

func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, sess datastore.Session, filter bson.M, update bson.M) (*T, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return decodeSingle[T](c.coll.FindOneAndUpdate(ctx, filter, update, opts))
}

func (c *Collection[T]) UpdateMany(ctx context.Context, sess datastore.Session, filter bson.M, update bson.M) (int64, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return 0, err
	}
	res, err := c.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (c *Collection[T]) FindOneAndDelete(ctx context.Context, sess datastore.Session, filter bson.M) (*T, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return nil, err
	}
	return decodeSingle[T](c.coll.FindOneAndDelete(ctx, filter))
}

func (c *Collection[T]) DeleteMany(ctx context.Context, sess datastore.Session, filter bson.M) (int64, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return 0, err
	}
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *Collection[T]) Aggregate(ctx context.Context, sess datastore.Session, pipeline storagemodels.Pipeline) ([]bson.Raw, error) {
	ctx, err := bind(ctx, sess)
	if err != nil {
		return nil, err
	}
	stages := pipeline
	if stages == nil {
		stages = storagemodels.Pipeline{}
	}
	cur, err := c.coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]bson.Raw, 0)
	for cur.Next(ctx) {
		// cur.Current is reused by the next call
		out = append(out, append(bson.Raw(nil), cur.Current...))
	}
	return out, cur.Err()
}

// decodeSingle decodes a single result; no match yields (nil, nil).
func decodeSingle[T any](res *mongo.SingleResult) (*T, error) {
	out := new(T)
	if err := res.Decode(out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
