/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Item attribute names.
const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrEntityType = "EntityType"
	attrDocument   = "Document"
)

var macroPattern = regexp.MustCompile(`{([^}]+)}`)

// record is the persisted shape of a document.
type record struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	EntityType string    `dynamodbav:"EntityType"`
	Document   []byte    `dynamodbav:"Document"`
	UpdatedAt  time.Time `dynamodbav:"UpdatedAt"`
}

// DefaultIndexMap is the key layout used when a type registers none.
func DefaultIndexMap(collection string) map[string]string {
	return map[string]string{
		attrPK: collection + "#{" + datastore.IDField + "}",
		attrSK: collection,
	}
}

// expandMacros replaces every {field} in the index map templates with the
// document's value for that (dotted) field. Missing fields expand to "".
func expandMacros(indexMap map[string]string, doc bson.M) map[string]string {
	res := make(map[string]string, len(indexMap))
	for attr, template := range indexMap {
		res[attr] = macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
			v, ok := query.Lookup(doc, strings.Trim(macro, "{}"))
			if !ok {
				return ""
			}
			return keyString(v)
		})
	}
	return res
}

// keyString renders a scalar for use inside a key.
func keyString(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case primitive.ObjectID:
		return tv.Hex()
	case bool:
		return strconv.FormatBool(tv)
	case int32:
		return strconv.FormatInt(int64(tv), 10)
	case int64:
		return strconv.FormatInt(tv, 10)
	case int:
		return strconv.Itoa(tv)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case primitive.DateTime:
		return tv.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return tv.UTC().Format(time.RFC3339Nano)
	default:
		// arrays, documents and binaries have no stable key form
		return ""
	}
}

// encode turns doc into a DynamoDB item and returns it with its key.
func encode(collection string, indexMap map[string]string, doc bson.M) (item, key map[string]types.AttributeValue, err error) {
	expanded := expandMacros(indexMap, doc)
	key, err = buildKeyFromExpanded(collection, expanded)
	if err != nil {
		return nil, nil, err
	}

	body, err := bson.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode document: %w", err)
	}
	item, err = attributevalue.MarshalMap(record{
		PK:         expanded[attrPK],
		SK:         expanded[attrSK],
		EntityType: collection,
		Document:   body,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal item: %w", err)
	}

	// Extra index attributes (GSI keys) are stored alongside.
	for attr, v := range expanded {
		if attr == attrPK || attr == attrSK || v == "" {
			continue
		}
		item[attr] = &types.AttributeValueMemberS{Value: v}
	}
	return item, key, nil
}

// decode turns an item back into its document.
func decode(item map[string]types.AttributeValue) (bson.M, error) {
	var rec record
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	doc := bson.M{}
	if err := bson.Unmarshal(rec.Document, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", rec.PK, rec.SK, err)
	}
	return doc, nil
}

// buildKeyFromExpanded builds the primary key from expanded templates.
func buildKeyFromExpanded(collection string, expanded map[string]string) (map[string]types.AttributeValue, error) {
	pk, sk := expanded[attrPK], expanded[attrSK]
	if pk == "" || sk == "" {
		return nil, fmt.Errorf("index map for %s expanded to an empty PK or SK", collection)
	}
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}, nil
}

func keyOf(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: item[attrPK],
		attrSK: item[attrSK],
	}
}

func sameKey(a, b map[string]types.AttributeValue) bool {
	return stringAttr(a[attrPK]) == stringAttr(b[attrPK]) && stringAttr(a[attrSK]) == stringAttr(b[attrSK])
}

func stringAttr(v types.AttributeValue) string {
	if s, ok := v.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
