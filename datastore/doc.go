/*
Package datastore defines the driver contract docstore services are built on.

A backend supplies three things:

	type Connection interface {
	    StartSession(ctx context.Context) (Session, error)
	    Close(ctx context.Context) error
	}

	type Session interface {
	    ID() string
	    WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	    EndSession(ctx context.Context)
	}

	type Collection[T any] interface {
	    FindOne, Find, Count, Exists,
	    InsertMany, FindOneAndUpdate, UpdateMany,
	    FindOneAndDelete, DeleteMany, Aggregate
	}

Every Collection method takes the Session to bind to; nil runs the call
outside any transaction. Filters, updates and pipelines are BSON documents in
MongoDB query language.

Implementations:
  - mongodb: MongoDB via the official driver
  - ddb: DynamoDB single-table design with buffered transactional writes
  - mock: in-memory implementation with real transaction semantics for testing

The helpers in document.go (ToDocument, FromDocument, DocumentID, EnsureID)
convert between entities and BSON documents for every backend.
*/
package datastore
