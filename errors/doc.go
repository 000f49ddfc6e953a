/*
Package errors provides semantic error types for docstore.

The package defines common error scenarios with specific types that can be
checked using the standard errors.Is() function or the provided helper functions.

Common Errors:

	var (
	    ErrNotFound        = errors.New("document not found")
	    ErrAlreadyExists   = errors.New("document already exists")
	    ErrInvalidInput    = errors.New("invalid input")
	    ErrConditionFailed = errors.New("condition check failed")
	    ErrSessionEnded    = errors.New("session has ended")
	)

Existence checks:

Every CRUD operation that accepts storagemodels.ThrowOnEmpty() reports an empty
result as a *NotFoundError carrying the caller's message:

	user, err := users.FindOne(ctx, id,
	    storagemodels.ThrowOnEmpty(),
	    storagemodels.WithErrorMessage("user does not exist"))
	if errors.IsNotFound(err) {
	    // err.Error() == "user does not exist"
	}

Without a message the error reads DefaultNotFoundMessage ("Document not found").

The error types implement the error interface and support wrapping,
making them compatible with Go's standard error handling patterns.
*/
package errors
