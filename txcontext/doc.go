/*
Package txcontext holds the active session of a logical execution.

A slot is installed once per request (or task) with WithStore or Middleware.
Every context derived from it, including contexts handed to other
goroutines, sees the same slot; executions with different slots never see
each other's sessions:

	ctx = txcontext.WithStore(ctx)
	txcontext.Set(ctx, sess)
	txcontext.Get(ctx) // sess
	txcontext.Set(ctx, nil)

docstore.TransactionService publishes each session it starts in a slot of
its own, nested under the caller's context. Units of work started from the
same request therefore never share a session, while Runs nested inside one
of them find it and join.
*/
package txcontext
