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

// Apply returns a copy of doc with update applied. An update without
// $-operators is treated as a $set of its fields.
func Apply(doc bson.M, update bson.M) (bson.M, error) {
	ops, err := normalizeUpdate(update)
	if err != nil {
		return nil, err
	}

	out := Clone(doc)
	originalID, hadID := doc["_id"]

	for _, op := range []string{"$set", "$unset", "$inc", "$push", "$pull"} {
		fields, ok := ops[op]
		if !ok {
			continue
		}
		for path, arg := range fields {
			if err := applyOperator(out, op, path, arg); err != nil {
				return nil, err
			}
		}
	}

	if hadID && !Equal(out["_id"], originalID) {
		return nil, errors.NewValidationError("_id", "update would modify the immutable field '_id'")
	}
	return out, nil
}

func normalizeUpdate(update bson.M) (map[string]bson.M, error) {
	if len(update) == 0 {
		return nil, errors.NewValidationError("", "update document must not be empty")
	}

	withOps, plain := 0, 0
	for k := range update {
		if strings.HasPrefix(k, "$") {
			withOps++
		} else {
			plain++
		}
	}
	if withOps > 0 && plain > 0 {
		return nil, errors.NewValidationError("", "update document mixes operators and fields")
	}
	if plain > 0 {
		return map[string]bson.M{"$set": update}, nil
	}

	ops := make(map[string]bson.M, len(update))
	for op, arg := range update {
		switch op {
		case "$set", "$unset", "$inc", "$push", "$pull":
		default:
			return nil, errors.NewValidationError(op, "unsupported update operator")
		}
		fields, ok := asDocument(arg)
		if !ok {
			return nil, errors.NewValidationError(op, "argument must be a document")
		}
		ops[op] = fields
	}
	return ops, nil
}

func applyOperator(doc bson.M, op, path string, arg any) error {
	switch op {
	case "$set":
		setPath(doc, path, cloneValue(arg))
	case "$unset":
		unsetPath(doc, path)
	case "$inc":
		delta, ok := toFloat(arg)
		if !ok {
			return errors.NewValidationError(path, "$inc requires a numeric argument")
		}
		current, found := Lookup(doc, path)
		if !found || current == nil {
			setPath(doc, path, arg)
			return nil
		}
		base, ok := toFloat(current)
		if !ok {
			return errors.NewValidationError(path, fmt.Sprintf("cannot $inc non-numeric value of type %T", current))
		}
		setPath(doc, path, numberResult(base+delta, current, arg))
	case "$push":
		items := []any{cloneValue(arg)}
		if each, ok := asDocument(arg); ok {
			if eachArg, hasEach := each["$each"]; hasEach {
				arr, isArr := asArray(eachArg)
				if !isArr {
					return errors.NewValidationError(path, "$each requires an array")
				}
				items = make([]any, len(arr))
				for i, el := range arr {
					items[i] = cloneValue(el)
				}
			}
		}
		current, found := Lookup(doc, path)
		var arr []any
		if found && current != nil {
			existing, ok := asArray(current)
			if !ok {
				return errors.NewValidationError(path, "$push target is not an array")
			}
			arr = append(arr, existing...)
		}
		setPath(doc, path, bson.A(append(arr, items...)))
	case "$pull":
		current, found := Lookup(doc, path)
		if !found || current == nil {
			return nil
		}
		existing, ok := asArray(current)
		if !ok {
			return errors.NewValidationError(path, "$pull target is not an array")
		}
		kept := bson.A{}
		for _, el := range existing {
			if pullMatches(el, arg) {
				continue
			}
			kept = append(kept, el)
		}
		setPath(doc, path, kept)
	}
	return nil
}

func pullMatches(el any, cond any) bool {
	if ops, ok := operatorDocument(cond); ok {
		for op, arg := range ops {
			matched, err := matchOperator(el, true, op, arg)
			if err != nil || !matched {
				return false
			}
		}
		return true
	}
	if sub, ok := asDocument(cond); ok {
		if elDoc, isDoc := asDocument(el); isDoc {
			matched, err := Match(elDoc, sub)
			return err == nil && matched
		}
	}
	return Equal(el, cond)
}
