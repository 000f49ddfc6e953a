/*
Package storagemodels defines the option and result types shared by docstore
services and drivers.

Key Types:

QueryOptions:
Per-call result policy, built from functional options:

	users.FindMany(ctx, bson.M{"active": true},
	    storagemodels.ThrowOnEmpty(),
	    storagemodels.WithErrorMessage("no active users"),
	    storagemodels.WithPagination(2, 10),
	    storagemodels.WithSort(bson.D{{Key: "name", Value: 1}}),
	)

PaginationResult:
The paginated form of a multi-document read:

	type PaginationResult[T any] struct {
	    Data        []T
	    Total       int64 // matches across all pages
	    TotalPages  int64 // ceil(Total/Limit), 1 when unlimited
	    CurrentPage int64 // Page, 1 when unset
	}

FindOptions and ScanOptions:
What drivers receive for multi-document reads, and how scanning backends page
through their tables.
*/
package storagemodels
