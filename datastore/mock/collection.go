/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package mock

import (
	"context"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/query"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection is an in-memory datastore.Collection[T]
type Collection[T any] struct {
	conn *Connection
	name string
}

// NewCollection creates a collection view of conn for entity type T
func NewCollection[T any](conn *Connection, name string) *Collection[T] {
	return &Collection[T]{conn: conn, name: name}
}

var _ datastore.Collection[struct{}] = (*Collection[struct{}])(nil)

// Name returns the collection name
func (c *Collection[T]) Name() string {
	return c.name
}

// FindOne returns the first matching document, or nil
func (c *Collection[T]) FindOne(ctx context.Context, sess datastore.Session, filter bson.M) (*T, error) {
	if err := c.conn.enter(c.name, OpFindOne); err != nil {
		return nil, err
	}
	docs, err := c.conn.read(sess, c.name)
	if err != nil {
		return nil, err
	}
	idx, err := firstMatch(docs, filter)
	if err != nil || idx < 0 {
		return nil, err
	}
	return datastore.FromDocument[T](docs[idx])
}

// Find returns the matching documents, sorted and paged
func (c *Collection[T]) Find(ctx context.Context, sess datastore.Session, filter bson.M, opts storagemodels.FindOptions) ([]T, error) {
	if err := c.conn.enter(c.name, OpFind); err != nil {
		return nil, err
	}
	docs, err := c.conn.read(sess, c.name)
	if err != nil {
		return nil, err
	}
	matched, err := query.Filter(docs, filter)
	if err != nil {
		return nil, err
	}
	if err := query.Sort(matched, opts.Sort); err != nil {
		return nil, err
	}
	return decodeAll[T](query.Page(matched, opts.Skip, opts.Limit))
}

// Count returns the number of matching documents
func (c *Collection[T]) Count(ctx context.Context, sess datastore.Session, filter bson.M) (int64, error) {
	if err := c.conn.enter(c.name, OpCount); err != nil {
		return 0, err
	}
	docs, err := c.conn.read(sess, c.name)
	if err != nil {
		return 0, err
	}
	matched, err := query.Filter(docs, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Exists reports whether any document matches
func (c *Collection[T]) Exists(ctx context.Context, sess datastore.Session, filter bson.M) (bool, error) {
	if err := c.conn.enter(c.name, OpExists); err != nil {
		return false, err
	}
	docs, err := c.conn.read(sess, c.name)
	if err != nil {
		return false, err
	}
	idx, err := firstMatch(docs, filter)
	return idx >= 0, err
}

// InsertMany inserts docs, assigning ObjectIDs where _id is missing
func (c *Collection[T]) InsertMany(ctx context.Context, sess datastore.Session, docs []any) ([]T, error) {
	if err := c.conn.enter(c.name, OpInsertMany); err != nil {
		return nil, err
	}
	prepared := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		doc, err := prepareInsert(d)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, doc)
	}

	err := c.conn.write(sess, c.name, func(existing []bson.M) ([]bson.M, error) {
		return appendUnique(c.name, existing, prepared)
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[T](prepared)
}

// FindOneAndUpdate updates the first match and returns the post-update document
func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, sess datastore.Session, filter bson.M, update bson.M) (*T, error) {
	if err := c.conn.enter(c.name, OpFindOneAndUpdate); err != nil {
		return nil, err
	}
	var updated bson.M
	err := c.conn.write(sess, c.name, func(existing []bson.M) ([]bson.M, error) {
		idx, err := firstMatch(existing, filter)
		if err != nil || idx < 0 {
			return existing, err
		}
		doc, err := query.Apply(existing[idx], update)
		if err != nil {
			return nil, err
		}
		updated = doc
		return replaceAt(existing, map[int]bson.M{idx: doc}), nil
	})
	if err != nil || updated == nil {
		return nil, err
	}
	return datastore.FromDocument[T](updated)
}

// UpdateMany updates every match and returns the matched count
func (c *Collection[T]) UpdateMany(ctx context.Context, sess datastore.Session, filter bson.M, update bson.M) (int64, error) {
	if err := c.conn.enter(c.name, OpUpdateMany); err != nil {
		return 0, err
	}
	var matched int64
	err := c.conn.write(sess, c.name, func(existing []bson.M) ([]bson.M, error) {
		replaced := make(map[int]bson.M)
		for i, doc := range existing {
			ok, err := query.Match(doc, filter)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			next, err := query.Apply(doc, update)
			if err != nil {
				return nil, err
			}
			replaced[i] = next
		}
		matched = int64(len(replaced))
		return replaceAt(existing, replaced), nil
	})
	return matched, err
}

// FindOneAndDelete removes the first match and returns it
func (c *Collection[T]) FindOneAndDelete(ctx context.Context, sess datastore.Session, filter bson.M) (*T, error) {
	if err := c.conn.enter(c.name, OpFindOneAndDelete); err != nil {
		return nil, err
	}
	var removed bson.M
	err := c.conn.write(sess, c.name, func(existing []bson.M) ([]bson.M, error) {
		idx, err := firstMatch(existing, filter)
		if err != nil || idx < 0 {
			return existing, err
		}
		removed = existing[idx]
		return removeWhere(existing, func(i int) bool { return i == idx }), nil
	})
	if err != nil || removed == nil {
		return nil, err
	}
	return datastore.FromDocument[T](removed)
}

// DeleteMany removes every match and returns the deleted count
func (c *Collection[T]) DeleteMany(ctx context.Context, sess datastore.Session, filter bson.M) (int64, error) {
	if err := c.conn.enter(c.name, OpDeleteMany); err != nil {
		return 0, err
	}
	var deleted int64
	err := c.conn.write(sess, c.name, func(existing []bson.M) ([]bson.M, error) {
		hits := make(map[int]bool)
		for i, doc := range existing {
			ok, err := query.Match(doc, filter)
			if err != nil {
				return nil, err
			}
			hits[i] = ok
		}
		next := removeWhere(existing, func(i int) bool { return hits[i] })
		deleted = int64(len(existing) - len(next))
		return next, nil
	})
	return deleted, err
}

// Aggregate runs pipeline over the collection
func (c *Collection[T]) Aggregate(ctx context.Context, sess datastore.Session, pipeline storagemodels.Pipeline) ([]bson.Raw, error) {
	if err := c.conn.enter(c.name, OpAggregate); err != nil {
		return nil, err
	}
	docs, err := c.conn.read(sess, c.name)
	if err != nil {
		return nil, err
	}
	out, err := query.Run(docs, pipeline)
	if err != nil {
		return nil, err
	}
	return toRaw(out)
}

func firstMatch(docs []bson.M, filter bson.M) (int, error) {
	for i, doc := range docs {
		ok, err := query.Match(doc, filter)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

// replaceAt returns a copy of docs with the given positions replaced.
func replaceAt(docs []bson.M, replaced map[int]bson.M) []bson.M {
	if len(replaced) == 0 {
		return docs
	}
	next := make([]bson.M, len(docs))
	copy(next, docs)
	for i, doc := range replaced {
		next[i] = doc
	}
	return next
}

// removeWhere returns a copy of docs without the positions drop selects.
func removeWhere(docs []bson.M, drop func(int) bool) []bson.M {
	next := make([]bson.M, 0, len(docs))
	for i, doc := range docs {
		if !drop(i) {
			next = append(next, doc)
		}
	}
	return next
}

func decodeAll[T any](docs []bson.M) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := datastore.FromDocument[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func toRaw(docs []bson.M) ([]bson.Raw, error) {
	out := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
