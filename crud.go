/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/logger"
	"github.com/suparena/docstore/metrics"
	"github.com/suparena/docstore/storagemodels"
	"github.com/suparena/docstore/txcontext"
	"go.mongodb.org/mongo-driver/bson"
)

// Operation names used for metrics and logs.
const (
	opFindOne     = "findOne"
	opFindMany    = "findMany"
	opFindPage    = "findPage"
	opIsExists    = "isExists"
	opCount       = "count"
	opCreate      = "create"
	opUpdateOne   = "updateOne"
	opUpdateMany  = "updateMany"
	opDeleteOne   = "deleteOne"
	opDeleteMany  = "deleteMany"
	opAggregation = "aggregation"
)

// Service provides CRUD operations for documents of type T in one collection.
//
// Every operation reads the session from the context slot, so calls made
// inside TransactionService.Run participate in its transaction; outside a
// transaction they run directly against the backend.
type Service[T any] struct {
	coll    datastore.Collection[T]
	log     logger.Logger
	metrics *metrics.Registry
}

// NewService creates a Service over the given collection.
func NewService[T any](coll datastore.Collection[T], opts ...Option) *Service[T] {
	o := newOptions(opts)
	s := &Service[T]{coll: coll, metrics: o.metrics}
	if o.log != nil {
		s.log = o.log.With("collection", coll.Name())
	}
	return s
}

// Name returns the collection name.
func (s *Service[T]) Name() string {
	return s.coll.Name()
}

// Collection returns the underlying backend collection.
func (s *Service[T]) Collection() datastore.Collection[T] {
	return s.coll
}

// FindOne returns the first document matching filterOrID, or nil.
func (s *Service[T]) FindOne(ctx context.Context, filterOrID any, opts ...storagemodels.QueryOption) (doc *T, err error) {
	defer s.observe(opFindOne, time.Now(), &err)

	filter, err := ResolveFilter(filterOrID)
	if err != nil {
		return nil, err
	}
	o := storagemodels.NewQueryOptions(opts...)

	doc, err = s.coll.FindOne(ctx, txcontext.Get(ctx), filter)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, doc != nil, opFindOne, o); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindMany returns the documents matching filter, honouring the sort and
// pagination window in opts.
func (s *Service[T]) FindMany(ctx context.Context, filter bson.M, opts ...storagemodels.QueryOption) (docs []T, err error) {
	defer s.observe(opFindMany, time.Now(), &err)

	o := storagemodels.NewQueryOptions(opts...)
	docs, err = s.find(ctx, filter, o)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, len(docs) > 0, opFindMany, o); err != nil {
		return nil, err
	}
	return docs, nil
}

// FindPage returns one page of matching documents along with the total
// match count. The existence check applies to the page itself.
func (s *Service[T]) FindPage(ctx context.Context, filter bson.M, opts ...storagemodels.QueryOption) (page *storagemodels.PaginationResult[T], err error) {
	defer s.observe(opFindPage, time.Now(), &err)

	o := storagemodels.NewQueryOptions(opts...)
	docs, err := s.find(ctx, filter, o)
	if err != nil {
		return nil, err
	}
	total, err := s.coll.Count(ctx, txcontext.Get(ctx), filterOrAll(filter))
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, len(docs) > 0, opFindPage, o); err != nil {
		return nil, err
	}

	totalPages, currentPage := Paginate(total, o.Pagination)
	return &storagemodels.PaginationResult[T]{
		Data:        docs,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
	}, nil
}

// IsExists reports whether any document matches filter.
func (s *Service[T]) IsExists(ctx context.Context, filter bson.M, opts ...storagemodels.QueryOption) (exists bool, err error) {
	defer s.observe(opIsExists, time.Now(), &err)

	o := storagemodels.NewQueryOptions(opts...)
	exists, err = s.coll.Exists(ctx, txcontext.Get(ctx), filterOrAll(filter))
	if err != nil {
		return false, err
	}
	if err := s.check(ctx, exists, opIsExists, o); err != nil {
		return false, err
	}
	return exists, nil
}

// Count returns the number of documents matching filter.
func (s *Service[T]) Count(ctx context.Context, filter bson.M) (n int64, err error) {
	defer s.observe(opCount, time.Now(), &err)
	return s.coll.Count(ctx, txcontext.Get(ctx), filterOrAll(filter))
}

// Create inserts one document and returns it as stored.
func (s *Service[T]) Create(ctx context.Context, doc any) (created *T, err error) {
	defer s.observe(opCreate, time.Now(), &err)

	docs, err := s.coll.InsertMany(ctx, txcontext.Get(ctx), []any{doc})
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("%s: insert returned %d documents, expected 1", s.Name(), len(docs))
	}
	return &docs[0], nil
}

// CreateMany inserts docs as one batch and returns every stored document in
// input order.
func (s *Service[T]) CreateMany(ctx context.Context, docs ...any) (created []T, err error) {
	defer s.observe(opCreate, time.Now(), &err)

	if len(docs) == 0 {
		return []T{}, nil
	}
	return s.coll.InsertMany(ctx, txcontext.Get(ctx), docs)
}

// UpdateOne applies update to the first document matching filterOrID and
// returns the post-update document, or nil if nothing matched.
func (s *Service[T]) UpdateOne(ctx context.Context, filterOrID any, update bson.M, opts ...storagemodels.QueryOption) (doc *T, err error) {
	defer s.observe(opUpdateOne, time.Now(), &err)

	filter, err := ResolveFilter(filterOrID)
	if err != nil {
		return nil, err
	}
	o := storagemodels.NewQueryOptions(opts...)

	doc, err = s.coll.FindOneAndUpdate(ctx, txcontext.Get(ctx), filter, update)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, doc != nil, opUpdateOne, o); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateMany applies update to every document matching filter and returns
// the updated versions of the documents that matched beforehand, in the
// order they were first found.
func (s *Service[T]) UpdateMany(ctx context.Context, filter bson.M, update bson.M, opts ...storagemodels.QueryOption) (docs []T, err error) {
	defer s.observe(opUpdateMany, time.Now(), &err)

	o := storagemodels.NewQueryOptions(opts...)
	sess := txcontext.Get(ctx)
	filter = filterOrAll(filter)

	matched, err := s.coll.Find(ctx, sess, filter, storagemodels.FindOptions{})
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, len(matched) > 0, opUpdateMany, o); err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return matched, nil
	}

	ids, err := datastore.DocumentIDs(matched)
	if err != nil {
		return nil, err
	}
	if _, err := s.coll.UpdateMany(ctx, sess, filter, update); err != nil {
		return nil, err
	}
	updated, err := s.coll.Find(ctx, sess, bson.M{datastore.IDField: bson.M{"$in": ids}}, storagemodels.FindOptions{})
	if err != nil {
		return nil, err
	}
	return orderByIDs(updated, ids)
}

// DeleteOne removes the first document matching filterOrID and returns it
// as it was before deletion.
func (s *Service[T]) DeleteOne(ctx context.Context, filterOrID any, opts ...storagemodels.QueryOption) (doc *T, err error) {
	defer s.observe(opDeleteOne, time.Now(), &err)

	filter, err := ResolveFilter(filterOrID)
	if err != nil {
		return nil, err
	}
	o := storagemodels.NewQueryOptions(opts...)
	sess := txcontext.Get(ctx)

	found, err := s.coll.FindOne(ctx, sess, filter)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, found != nil, opDeleteOne, o); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, nil
	}

	id, err := datastore.DocumentID(found)
	if err != nil {
		return nil, err
	}
	if _, err := s.coll.FindOneAndDelete(ctx, sess, bson.M{datastore.IDField: id}); err != nil {
		return nil, err
	}
	return found, nil
}

// DeleteMany removes every document matching filter and returns the
// pre-deletion snapshot.
func (s *Service[T]) DeleteMany(ctx context.Context, filter bson.M, opts ...storagemodels.QueryOption) (docs []T, err error) {
	defer s.observe(opDeleteMany, time.Now(), &err)

	o := storagemodels.NewQueryOptions(opts...)
	sess := txcontext.Get(ctx)
	filter = filterOrAll(filter)

	matched, err := s.coll.Find(ctx, sess, filter, storagemodels.FindOptions{})
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, len(matched) > 0, opDeleteMany, o); err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return matched, nil
	}
	if _, err := s.coll.DeleteMany(ctx, sess, filter); err != nil {
		return nil, err
	}
	return matched, nil
}

// Aggregation runs pipeline against the collection and returns the raw
// result documents. Use Aggregate to decode them into a typed slice.
func (s *Service[T]) Aggregation(ctx context.Context, pipeline storagemodels.Pipeline) (out []bson.Raw, err error) {
	defer s.observe(opAggregation, time.Now(), &err)
	return s.coll.Aggregate(ctx, txcontext.Get(ctx), pipeline)
}

// Aggregate runs pipeline through s and decodes each result into R.
func Aggregate[R any, T any](ctx context.Context, s *Service[T], pipeline storagemodels.Pipeline) ([]R, error) {
	raw, err := s.Aggregation(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := make([]R, 0, len(raw))
	for _, r := range raw {
		var v R
		if err := bson.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service[T]) find(ctx context.Context, filter bson.M, o storagemodels.QueryOptions) ([]T, error) {
	findOpts := storagemodels.FindOptions{Sort: o.Sort}
	if o.Pagination.Bounded() {
		findOpts.Skip = Skip(o.Pagination)
		findOpts.Limit = o.Pagination.Limit
	}
	return s.coll.Find(ctx, txcontext.Get(ctx), filterOrAll(filter), findOpts)
}

func (s *Service[T]) check(ctx context.Context, found bool, op string, o storagemodels.QueryOptions) error {
	err := CheckExistence(found, s.Name(), o)
	if err != nil {
		s.logger(ctx).Debug("empty result rejected", "operation", op, "message", o.ErrorMessage)
	}
	return err
}

func (s *Service[T]) logger(ctx context.Context) logger.Logger {
	if s.log != nil {
		return s.log
	}
	return logger.FromContext(ctx).With("collection", s.Name())
}

func (s *Service[T]) observe(op string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	status := metrics.StatusOK
	switch {
	case *errp == nil:
	case errors.IsNotFound(*errp):
		status = metrics.StatusNotFound
	default:
		status = metrics.StatusError
	}
	s.metrics.RecordOperation(s.Name(), op, status, time.Since(start))
}

// orderByIDs returns docs arranged in the order of ids; ids with no
// matching document are skipped.
func orderByIDs[T any](docs []T, ids []any) ([]T, error) {
	byKey := make(map[string]T, len(docs))
	for _, d := range docs {
		id, err := datastore.DocumentID(d)
		if err != nil {
			return nil, err
		}
		byKey[datastore.IDKey(id)] = d
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if d, ok := byKey[datastore.IDKey(id)]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}
