/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CheckExistence is the result policy shared by every read and write.
// When found is false and the caller asked for ThrowOnEmpty it returns a
// *errors.NotFoundError carrying the caller's message; otherwise nil.
func CheckExistence(found bool, collection string, opts storagemodels.QueryOptions) error {
	if found || !opts.ThrowOnEmpty {
		return nil
	}
	return errors.NewDocumentNotFoundError(collection, opts.ErrorMessage)
}

// Skip returns the number of documents before the requested page.
func Skip(p *storagemodels.Pagination) int64 {
	if !p.Bounded() {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Paginate computes the page count and current page for total matches.
// TotalPages is ceil(total/limit), or 1 without a limit; CurrentPage defaults to 1.
func Paginate(total int64, p *storagemodels.Pagination) (totalPages, currentPage int64) {
	totalPages, currentPage = 1, 1
	if p == nil {
		return totalPages, currentPage
	}
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	if p.Page > 0 {
		currentPage = p.Page
	}
	return totalPages, currentPage
}

// ResolveFilter turns a filter-or-identifier into a filter document.
//
// Identifiers are recognised by format: an ObjectID, or a string holding a
// valid ObjectID hex, matches on _id as an ObjectID; any other string matches
// on _id as a string. Documents are used as predicates and nil matches all.
func ResolveFilter(filterOrID any) (bson.M, error) {
	switch f := filterOrID.(type) {
	case nil:
		return bson.M{}, nil
	case primitive.ObjectID:
		return bson.M{datastore.IDField: f}, nil
	case *primitive.ObjectID:
		if f == nil {
			return bson.M{}, nil
		}
		return bson.M{datastore.IDField: *f}, nil
	case strfmt.ObjectId:
		return bson.M{datastore.IDField: primitive.ObjectID(f)}, nil
	case string:
		if strfmt.IsBSONObjectID(f) {
			oid, err := primitive.ObjectIDFromHex(f)
			if err != nil {
				return nil, err
			}
			return bson.M{datastore.IDField: oid}, nil
		}
		return bson.M{datastore.IDField: f}, nil
	case bson.M:
		return filterOrAll(f), nil
	case map[string]any:
		return filterOrAll(bson.M(f)), nil
	case bson.D:
		out := make(bson.M, len(f))
		for _, e := range f {
			out[e.Key] = e.Value
		}
		return out, nil
	}
	return nil, errors.NewValidationError("filter", fmt.Sprintf("unsupported filter or identifier type %T", filterOrID))
}

func filterOrAll(f bson.M) bson.M {
	if f == nil {
		return bson.M{}
	}
	return f
}
