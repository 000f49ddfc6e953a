/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Pipeline is an aggregation pipeline, one stage per element.
type Pipeline []bson.M

// Pagination selects a page of a multi-document read. Page is 1-based.
type Pagination struct {
	Page  int64 `json:"page" bson:"page"`
	Limit int64 `json:"limit" bson:"limit"`
}

// Bounded reports whether both page and limit are set, i.e. skip/limit apply.
func (p *Pagination) Bounded() bool {
	return p != nil && p.Page > 0 && p.Limit > 0
}

// PaginationResult is the paginated form of a multi-document read.
type PaginationResult[T any] struct {
	Data        []T   `json:"data" bson:"data"`
	Total       int64 `json:"total" bson:"total"`
	TotalPages  int64 `json:"totalPages" bson:"totalPages"`
	CurrentPage int64 `json:"currentPage" bson:"currentPage"`
}

// QueryOptions controls the result policy of a single CRUD call.
type QueryOptions struct {
	// ThrowOnEmpty turns an empty result into a not-found error.
	ThrowOnEmpty bool
	// ErrorMessage replaces the default not-found message.
	ErrorMessage string
	// Pagination is honoured by multi-document reads only.
	Pagination *Pagination
	// Sort is forwarded to multi-document reads.
	Sort bson.D
}

// QueryOption is a functional option for configuring a CRUD call
type QueryOption func(*QueryOptions)

// DefaultQueryOptions returns the options used when none are supplied
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{ThrowOnEmpty: false}
}

// NewQueryOptions applies opts on top of DefaultQueryOptions
func NewQueryOptions(opts ...QueryOption) QueryOptions {
	options := DefaultQueryOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// ThrowOnEmpty makes an empty result fail with a not-found error
func ThrowOnEmpty() QueryOption {
	return func(opts *QueryOptions) {
		opts.ThrowOnEmpty = true
	}
}

// WithThrowOnEmpty sets ThrowOnEmpty explicitly
func WithThrowOnEmpty(throw bool) QueryOption {
	return func(opts *QueryOptions) {
		opts.ThrowOnEmpty = throw
	}
}

// WithErrorMessage sets the message carried by the not-found error
func WithErrorMessage(message string) QueryOption {
	return func(opts *QueryOptions) {
		opts.ErrorMessage = message
	}
}

// WithPagination requests a page of results
func WithPagination(page, limit int64) QueryOption {
	return func(opts *QueryOptions) {
		opts.Pagination = &Pagination{Page: page, Limit: limit}
	}
}

// WithSort sets the sort order of multi-document reads
func WithSort(sort bson.D) QueryOption {
	return func(opts *QueryOptions) {
		opts.Sort = sort
	}
}

// FindOptions is what drivers receive for multi-document reads.
// Zero Skip and Limit mean unbounded.
type FindOptions struct {
	Skip  int64
	Limit int64
	Sort  bson.D
}
