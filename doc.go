/*
Package docstore is a generic CRUD layer over document collections with
implicit transaction propagation.

A Service[T] wraps one collection and exposes find, count, create, update,
delete and aggregation operations with a uniform result policy: by default
an empty result is returned as-is, and with ThrowOnEmpty it becomes a
*errors.NotFoundError carrying an optional custom message.

A TransactionService runs a unit of work inside a backend transaction. The
session is placed in a slot carried by the context.Context, so every
Service call made with that context (or one derived from it) joins the
transaction without the session being threaded through by hand. Nested Run
calls reuse the outer session and leave commit, abort and session teardown
to the outermost Run.

Basic Usage:

	conn := mock.New()
	users := docstore.NewService[User](mock.NewCollection[User](conn, "users"))
	tx := docstore.NewTransactionService(conn)

	err := tx.Run(ctx, func(ctx context.Context, _ datastore.Session) error {
		u, err := users.Create(ctx, User{Name: "Ada"})
		if err != nil {
			return err
		}
		_, err = users.UpdateOne(ctx, u.ID, bson.M{"$set": bson.M{"active": true}},
			storagemodels.ThrowOnEmpty())
		return err
	})

Backends live under datastore/: mongodb for MongoDB replica sets, ddb for a
single-table DynamoDB layout and mock for in-memory tests.
*/
package docstore
