/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suparena/docstore/errors"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
)

// Sort orders docs in place by the given keys; 1 is ascending, -1 descending.
func Sort(docs []bson.M, by bson.D) error {
	if len(by) == 0 {
		return nil
	}
	dirs := make([]int, len(by))
	for i, e := range by {
		f, ok := toFloat(e.Value)
		if !ok || (f != 1 && f != -1) {
			return errors.NewValidationError(e.Key, "sort direction must be 1 or -1")
		}
		dirs[i] = int(f)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for k, e := range by {
			a, _ := Lookup(docs[i], e.Key)
			b, _ := Lookup(docs[j], e.Key)
			if c := Compare(a, b); c != 0 {
				return c*dirs[k] < 0
			}
		}
		return false
	})
	return nil
}

// Page applies skip and limit; zero means unbounded.
func Page(docs []bson.M, skip, limit int64) []bson.M {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return docs[:0]
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

// Run evaluates an aggregation pipeline over docs.
func Run(docs []bson.M, pipeline storagemodels.Pipeline) ([]bson.M, error) {
	cur := make([]bson.M, len(docs))
	for i, d := range docs {
		cur[i] = Clone(d)
	}

	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, errors.NewValidationError(fmt.Sprintf("pipeline[%d]", i), "stage must have exactly one key")
		}
		for name, arg := range stage {
			var err error
			cur, err = runStage(cur, name, arg)
			if err != nil {
				return nil, err
			}
		}
	}
	return cur, nil
}

func runStage(docs []bson.M, name string, arg any) ([]bson.M, error) {
	switch name {
	case "$match":
		filter, ok := asDocument(arg)
		if !ok {
			return nil, errors.NewValidationError(name, "argument must be a document")
		}
		return Filter(docs, filter)
	case "$sort":
		by, err := sortSpec(arg)
		if err != nil {
			return nil, err
		}
		return docs, Sort(docs, by)
	case "$skip", "$limit":
		n, ok := toFloat(arg)
		if !ok || n < 0 {
			return nil, errors.NewValidationError(name, "argument must be a non-negative number")
		}
		if name == "$skip" {
			return Page(docs, int64(n), 0), nil
		}
		return Page(docs, 0, int64(n)), nil
	case "$count":
		field, ok := arg.(string)
		if !ok || field == "" {
			return nil, errors.NewValidationError(name, "argument must be a non-empty string")
		}
		if len(docs) == 0 {
			return []bson.M{}, nil
		}
		return []bson.M{{field: int32(len(docs))}}, nil
	case "$project":
		spec, ok := asDocument(arg)
		if !ok {
			return nil, errors.NewValidationError(name, "argument must be a document")
		}
		return project(docs, spec)
	case "$unwind":
		path, ok := arg.(string)
		if !ok || !strings.HasPrefix(path, "$") {
			return nil, errors.NewValidationError(name, "argument must be a $-prefixed field path")
		}
		return unwind(docs, strings.TrimPrefix(path, "$")), nil
	case "$group":
		spec, ok := asDocument(arg)
		if !ok {
			return nil, errors.NewValidationError(name, "argument must be a document")
		}
		return group(docs, spec)
	}
	return nil, errors.NewValidationError(name, "unsupported pipeline stage")
}

func sortSpec(arg any) (bson.D, error) {
	switch s := arg.(type) {
	case bson.D:
		return s, nil
	}
	d, ok := asDocument(arg)
	if !ok {
		return nil, errors.NewValidationError("$sort", "argument must be a document")
	}
	if len(d) > 1 {
		return nil, errors.NewValidationError("$sort", "multi-key sort requires an ordered bson.D")
	}
	out := bson.D{}
	for k, v := range d {
		out = append(out, bson.E{Key: k, Value: v})
	}
	return out, nil
}

// evaluate resolves "$path" references and returns literals as-is.
func evaluate(doc bson.M, expr any) any {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		v, _ := Lookup(doc, strings.TrimPrefix(s, "$"))
		return v
	}
	return expr
}

func project(docs []bson.M, spec bson.M) ([]bson.M, error) {
	include := map[string]any{}
	exclude := map[string]bool{}
	keepID := true
	for field, v := range spec {
		flag, isFlag := projectionFlag(v)
		switch {
		case field == "_id" && isFlag:
			keepID = flag
		case isFlag && flag:
			include[field] = nil
		case isFlag:
			exclude[field] = true
		default:
			include[field] = v
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, errors.NewValidationError("$project", "cannot mix inclusion and exclusion")
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		var next bson.M
		if len(include) > 0 {
			next = bson.M{}
			for field, expr := range include {
				if expr == nil {
					if v, ok := Lookup(doc, field); ok {
						setPath(next, field, v)
					}
					continue
				}
				setPath(next, field, evaluate(doc, expr))
			}
			if keepID {
				if id, ok := doc["_id"]; ok {
					next["_id"] = id
				}
			}
		} else {
			next = Clone(doc)
			for field := range exclude {
				unsetPath(next, field)
			}
			if !keepID {
				delete(next, "_id")
			}
		}
		out = append(out, next)
	}
	return out, nil
}

func projectionFlag(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

func unwind(docs []bson.M, path string) []bson.M {
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		v, ok := Lookup(doc, path)
		if !ok || v == nil {
			continue
		}
		arr, isArr := asArray(v)
		if !isArr {
			out = append(out, doc)
			continue
		}
		for _, el := range arr {
			next := Clone(doc)
			setPath(next, path, cloneValue(el))
			out = append(out, next)
		}
	}
	return out
}

type accumulator struct {
	field string
	op    string
	expr  any
}

type groupState struct {
	id     any
	values map[string]any
	counts map[string]int
}

func group(docs []bson.M, spec bson.M) ([]bson.M, error) {
	idExpr, ok := spec["_id"]
	if !ok {
		return nil, errors.NewValidationError("$group", "an _id expression is required")
	}

	accs := make([]accumulator, 0, len(spec))
	for _, field := range sortedKeys(spec) {
		if field == "_id" {
			continue
		}
		d, isDoc := asDocument(spec[field])
		if !isDoc || len(d) != 1 {
			return nil, errors.NewValidationError(field, "accumulator must be a single-operator document")
		}
		for op, expr := range d {
			switch op {
			case "$sum", "$avg", "$min", "$max", "$first", "$last", "$push":
			default:
				return nil, errors.NewValidationError(field, fmt.Sprintf("unsupported accumulator %s", op))
			}
			accs = append(accs, accumulator{field: field, op: op, expr: expr})
		}
	}

	var order []*groupState
	byKey := map[string]*groupState{}
	for _, doc := range docs {
		id := evaluate(doc, idExpr)
		key := fmt.Sprintf("%d:%v", typeRank(id), id)
		state, exists := byKey[key]
		if !exists {
			state = &groupState{id: id, values: map[string]any{}, counts: map[string]int{}}
			byKey[key] = state
			order = append(order, state)
		}
		for _, acc := range accs {
			accumulate(state, acc, evaluate(doc, acc.expr))
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, state := range order {
		row := bson.M{"_id": state.id}
		for _, acc := range accs {
			v := state.values[acc.field]
			if acc.op == "$avg" {
				if n := state.counts[acc.field]; n > 0 {
					sum, _ := toFloat(v)
					v = sum / float64(n)
				} else {
					v = nil
				}
			}
			if acc.op == "$sum" && v == nil {
				v = int32(0)
			}
			row[acc.field] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func accumulate(state *groupState, acc accumulator, v any) {
	cur, seen := state.values[acc.field]
	switch acc.op {
	case "$sum", "$avg":
		f, ok := toFloat(v)
		if !ok {
			return
		}
		state.counts[acc.field]++
		if !seen || cur == nil {
			state.values[acc.field] = v
			return
		}
		base, _ := toFloat(cur)
		state.values[acc.field] = numberResult(base+f, cur, v)
	case "$min":
		if v != nil && (!seen || Compare(v, cur) < 0) {
			state.values[acc.field] = v
		}
	case "$max":
		if v != nil && (!seen || Compare(v, cur) > 0) {
			state.values[acc.field] = v
		}
	case "$first":
		if !seen {
			state.values[acc.field] = v
		}
	case "$last":
		state.values[acc.field] = v
	case "$push":
		arr, _ := cur.(bson.A)
		state.values[acc.field] = append(arr, v)
	}
}
