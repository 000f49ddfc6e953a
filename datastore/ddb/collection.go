/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/query"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/registry"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection stores documents of type T under one EntityType of the table.
// Writes outside a session are applied item by item, not atomically.
type Collection[T any] struct {
	conn     *Connection
	name     string
	indexMap map[string]string
}

var _ datastore.Collection[struct{}] = (*Collection[struct{}])(nil)

// NewCollection returns the collection called name. T's registered index
// map is used when present, DefaultIndexMap(name) otherwise.
func NewCollection[T any](conn *Connection, name string) *Collection[T] {
	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		indexMap = DefaultIndexMap(name)
	}
	return &Collection[T]{conn: conn, name: name, indexMap: indexMap}
}

func (c *Collection[T]) Name() string {
	return c.name
}

// docChange replaces before with after; a nil before inserts, a nil after deletes.
type docChange struct {
	before bson.M
	after  bson.M
}

// read returns the documents visible to sess and its running transaction, if any.
func (c *Collection[T]) read(ctx context.Context, sess datastore.Session) ([]bson.M, *overlay, error) {
	tx, err := c.conn.session(sess)
	if err != nil {
		return nil, nil, err
	}
	docs, err := c.conn.scanCollection(ctx, c.name)
	if err != nil {
		return nil, nil, err
	}
	if tx != nil {
		docs = tx.view(c.name, docs)
	}
	return docs, tx, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, sess datastore.Session, filter bson.M) (*T, error) {
	docs, _, err := c.read(ctx, sess)
	if err != nil {
		return nil, err
	}
	doc, err := firstMatch(docs, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	return datastore.FromDocument[T](doc)
}

func (c *Collection[T]) Find(ctx context.Context, sess datastore.Session, filter bson.M, opts storagemodels.FindOptions) ([]T, error) {
	docs, _, err := c.read(ctx, sess)
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

func (c *Collection[T]) Count(ctx context.Context, sess datastore.Session, filter bson.M) (int64, error) {
	docs, _, err := c.read(ctx, sess)
	if err != nil {
		return 0, err
	}
	matched, err := query.Filter(docs, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (c *Collection[T]) Exists(ctx context.Context, sess datastore.Session, filter bson.M) (bool, error) {
	docs, _, err := c.read(ctx, sess)
	if err != nil {
		return false, err
	}
	doc, err := firstMatch(docs, filter)
	return doc != nil, err
}

// InsertMany inserts docs, assigning ObjectIDs where _id is missing.
func (c *Collection[T]) InsertMany(ctx context.Context, sess datastore.Session, docs []any) ([]T, error) {
	tx, err := c.conn.session(sess)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(docs))
	if tx != nil {
		visible, _, err := c.read(ctx, sess)
		if err != nil {
			return nil, err
		}
		for _, d := range visible {
			seen[datastore.IDKey(d[datastore.IDField])] = true
		}
	}

	changes := make([]docChange, 0, len(docs))
	prepared := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		doc, err := datastore.ToDocument(d)
		if err != nil {
			return nil, err
		}
		doc = query.Clone(doc)
		id := datastore.IDKey(datastore.EnsureID(doc))
		if seen[id] {
			return nil, errors.NewAlreadyExistsError(c.name, fmt.Sprint(doc[datastore.IDField]))
		}
		seen[id] = true
		prepared = append(prepared, doc)
		changes = append(changes, docChange{after: doc})
	}

	if err := c.apply(ctx, tx, changes); err != nil {
		return nil, err
	}
	return decodeAll[T](prepared)
}

func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, sess datastore.Session, filter bson.M, update bson.M) (*T, error) {
	docs, tx, err := c.read(ctx, sess)
	if err != nil {
		return nil, err
	}
	doc, err := firstMatch(docs, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	updated, err := query.Apply(doc, update)
	if err != nil {
		return nil, err
	}
	if err := c.apply(ctx, tx, []docChange{{before: doc, after: updated}}); err != nil {
		return nil, err
	}
	return datastore.FromDocument[T](updated)
}

func (c *Collection[T]) UpdateMany(ctx context.Context, sess datastore.Session, filter bson.M, update bson.M) (int64, error) {
	docs, tx, err := c.read(ctx, sess)
	if err != nil {
		return 0, err
	}
	matched, err := query.Filter(docs, filter)
	if err != nil {
		return 0, err
	}
	changes := make([]docChange, 0, len(matched))
	for _, doc := range matched {
		updated, err := query.Apply(doc, update)
		if err != nil {
			return 0, err
		}
		changes = append(changes, docChange{before: doc, after: updated})
	}
	if err := c.apply(ctx, tx, changes); err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (c *Collection[T]) FindOneAndDelete(ctx context.Context, sess datastore.Session, filter bson.M) (*T, error) {
	docs, tx, err := c.read(ctx, sess)
	if err != nil {
		return nil, err
	}
	doc, err := firstMatch(docs, filter)
	if err != nil || doc == nil {
		return nil, err
	}
	if err := c.apply(ctx, tx, []docChange{{before: doc}}); err != nil {
		return nil, err
	}
	return datastore.FromDocument[T](doc)
}

func (c *Collection[T]) DeleteMany(ctx context.Context, sess datastore.Session, filter bson.M) (int64, error) {
	docs, tx, err := c.read(ctx, sess)
	if err != nil {
		return 0, err
	}
	matched, err := query.Filter(docs, filter)
	if err != nil {
		return 0, err
	}
	changes := make([]docChange, 0, len(matched))
	for _, doc := range matched {
		changes = append(changes, docChange{before: doc})
	}
	if err := c.apply(ctx, tx, changes); err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (c *Collection[T]) Aggregate(ctx context.Context, sess datastore.Session, pipeline storagemodels.Pipeline) ([]bson.Raw, error) {
	docs, _, err := c.read(ctx, sess)
	if err != nil {
		return nil, err
	}
	out, err := query.Run(docs, pipeline)
	if err != nil {
		return nil, err
	}
	raw := make([]bson.Raw, 0, len(out))
	for _, doc := range out {
		b, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return raw, nil
}

// apply buffers changes in tx, or writes them straight to the table when
// there is no running transaction.
func (c *Collection[T]) apply(ctx context.Context, tx *overlay, changes []docChange) error {
	for _, ch := range changes {
		var (
			baseKey, item map[string]types.AttributeValue
			err           error
			id            any
		)
		if ch.before != nil {
			baseKey, err = buildKeyFromExpanded(c.name, expandMacros(c.indexMap, ch.before))
			if err != nil {
				return err
			}
			id = ch.before[datastore.IDField]
		}
		if ch.after != nil {
			if item, _, err = encode(c.name, c.indexMap, ch.after); err != nil {
				return err
			}
			id = ch.after[datastore.IDField]
		}

		if tx != nil {
			tx.record(c.name, datastore.IDKey(id), change{baseKey: baseKey, item: item, doc: ch.after})
			continue
		}
		if err := c.write(ctx, baseKey, item, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection[T]) write(ctx context.Context, baseKey, item map[string]types.AttributeValue, id any) error {
	table := c.conn.table

	if item != nil {
		input := &sdk.PutItemInput{TableName: &table, Item: item}
		if baseKey == nil {
			input.ConditionExpression = aws.String("attribute_not_exists(PK)")
		}
		if _, err := c.conn.client.PutItem(ctx, input); err != nil {
			var cfe *types.ConditionalCheckFailedException
			if stderrors.As(err, &cfe) {
				return errors.NewAlreadyExistsError(c.name, fmt.Sprint(id))
			}
			return fmt.Errorf("PutItem failed: %w", err)
		}
		if baseKey == nil || sameKey(baseKey, keyOf(item)) {
			return nil
		}
	}

	if _, err := c.conn.client.DeleteItem(ctx, &sdk.DeleteItemInput{TableName: &table, Key: baseKey}); err != nil {
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	return nil
}

func firstMatch(docs []bson.M, filter bson.M) (bson.M, error) {
	for _, doc := range docs {
		ok, err := query.Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			return doc, nil
		}
	}
	return nil, nil
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
