/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strings"

	"github.com/suparena/docstore/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Match reports whether doc satisfies filter. An empty filter matches everything.
func Match(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		ok, err := matchClause(doc, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Filter returns the documents of docs matching filter, preserving order.
func Filter(docs []bson.M, filter bson.M) ([]bson.M, error) {
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func matchClause(doc bson.M, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		subs, err := subFilters(key, cond)
		if err != nil {
			return false, err
		}
		return matchLogical(doc, key, subs)
	}
	if strings.HasPrefix(key, "$") {
		return false, errors.NewValidationError(key, "unknown top level operator")
	}

	value, found := Lookup(doc, key)
	if ops, ok := operatorDocument(cond); ok {
		for op, arg := range ops {
			matched, err := matchOperator(value, found, op, arg)
			if err != nil || !matched {
				return false, err
			}
		}
		return true, nil
	}
	return matchEq(value, found, cond), nil
}

func matchLogical(doc bson.M, op string, subs []bson.M) (bool, error) {
	for _, sub := range subs {
		ok, err := Match(doc, sub)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !ok:
			return false, nil
		case op == "$or" && ok:
			return true, nil
		case op == "$nor" && ok:
			return false, nil
		}
	}
	return op != "$or", nil
}

func subFilters(op string, cond any) ([]bson.M, error) {
	if typed, ok := cond.([]bson.M); ok {
		return typed, nil
	}
	arr, ok := asArray(cond)
	if !ok || len(arr) == 0 {
		return nil, errors.NewValidationError(op, "argument must be a non-empty array")
	}
	out := make([]bson.M, 0, len(arr))
	for _, el := range arr {
		d, ok := asDocument(el)
		if !ok {
			return nil, errors.NewValidationError(op, "array elements must be documents")
		}
		out = append(out, d)
	}
	return out, nil
}

// operatorDocument reports whether cond is a document of $-operators.
func operatorDocument(cond any) (bson.M, bool) {
	d, ok := asDocument(cond)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return d, true
}

// matchEq implements implicit equality, including array membership.
func matchEq(value any, found bool, cond any) bool {
	if cond == nil {
		return !found || value == nil
	}
	if !found {
		return false
	}
	if Equal(value, cond) {
		return true
	}
	if arr, ok := asArray(value); ok {
		for _, el := range arr {
			if Equal(el, cond) {
				return true
			}
		}
	}
	return false
}

func matchAny(value any, found bool, pred func(any) bool) bool {
	if !found {
		return false
	}
	if pred(value) {
		return true
	}
	if arr, ok := asArray(value); ok {
		for _, el := range arr {
			if pred(el) {
				return true
			}
		}
	}
	return false
}

func matchOperator(value any, found bool, op string, arg any) (bool, error) {
	switch op {
	case "$eq":
		return matchEq(value, found, arg), nil
	case "$ne":
		return !matchEq(value, found, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		return matchAny(value, found, func(v any) bool {
			if typeRank(v) != typeRank(arg) {
				return false
			}
			c := Compare(v, arg)
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			}
			return c <= 0
		}), nil
	case "$in", "$nin":
		candidates, ok := asArray(arg)
		if !ok {
			return false, errors.NewValidationError(op, "argument must be an array")
		}
		in := false
		for _, c := range candidates {
			if matchEq(value, found, c) {
				in = true
				break
			}
		}
		if op == "$in" {
			return in, nil
		}
		return !in, nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			f, isNum := toFloat(arg)
			if !isNum {
				return false, errors.NewValidationError(op, "argument must be a boolean")
			}
			want = f != 0
		}
		return found == want, nil
	case "$not":
		ops, ok := operatorDocument(arg)
		if !ok {
			return false, errors.NewValidationError(op, "argument must be an operator document")
		}
		for inner, innerArg := range ops {
			matched, err := matchOperator(value, found, inner, innerArg)
			if err != nil {
				return false, err
			}
			if !matched {
				return true, nil
			}
		}
		return false, nil
	case "$size":
		n, ok := toFloat(arg)
		if !ok {
			return false, errors.NewValidationError(op, "argument must be a number")
		}
		arr, isArr := asArray(value)
		return found && isArr && float64(len(arr)) == n, nil
	}
	return false, errors.NewValidationError(op, fmt.Sprintf("unsupported query operator %s", op))
}
