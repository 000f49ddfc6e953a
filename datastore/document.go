/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the identifier field every document carries.
const IDField = "_id"

// ErrNoID is returned when a document has no _id.
var ErrNoID = errors.New("document has no _id")

// ToDocument converts any BSON-encodable value into a bson.M.
func ToDocument(v any) (bson.M, error) {
	switch doc := v.(type) {
	case bson.M:
		return doc, nil
	case map[string]any:
		return bson.M(doc), nil
	}

	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a bson.M into a new T.
func FromDocument[T any](doc bson.M) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	out := new(T)
	if err := bson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to decode document into %T: %w", out, err)
	}
	return out, nil
}

// DocumentID extracts the _id of any BSON-encodable entity.
func DocumentID(v any) (any, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	val, err := bson.Raw(raw).LookupErr(IDField)
	if err != nil {
		return nil, ErrNoID
	}

	var id any
	if err := val.Unmarshal(&id); err != nil {
		return nil, fmt.Errorf("failed to decode _id: %w", err)
	}
	return id, nil
}

// DocumentIDs extracts the _id of every entity, in order.
func DocumentIDs[T any](docs []T) ([]any, error) {
	ids := make([]any, 0, len(docs))
	for i := range docs {
		id, err := DocumentID(&docs[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EnsureID assigns a new ObjectID to doc when it has no usable _id.
func EnsureID(doc bson.M) any {
	id, ok := doc[IDField]
	if !ok || id == nil {
		id = primitive.NewObjectID()
		doc[IDField] = id
	}
	if oid, isOID := id.(primitive.ObjectID); isOID && oid.IsZero() {
		id = primitive.NewObjectID()
		doc[IDField] = id
	}
	return id
}

// IDKey renders an _id as a stable map key.
func IDKey(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return "oid:" + v.Hex()
	case string:
		return "str:" + v
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
