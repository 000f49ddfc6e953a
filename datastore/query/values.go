/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"bytes"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Clone deep-copies a document so stored state never aliases caller values.
func Clone(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case bson.M:
		return Clone(tv)
	case map[string]any:
		return Clone(bson.M(tv))
	case bson.D:
		out := make(bson.D, len(tv))
		for i, e := range tv {
			out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	case []any:
		out := make(bson.A, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// asDocument views v as a bson.M when it is any kind of document.
func asDocument(v any) (bson.M, bool) {
	switch tv := v.(type) {
	case bson.M:
		return tv, true
	case map[string]any:
		return bson.M(tv), true
	case bson.D:
		out := make(bson.M, len(tv))
		for _, e := range tv {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

// asArray views v as a slice of values when it is any kind of array.
// Byte slices are binary values, not arrays.
func asArray(v any) ([]any, bool) {
	switch tv := v.(type) {
	case bson.A:
		return tv, true
	case []any:
		return tv, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

// typeRank follows MongoDB's cross-type comparison order.
func typeRank(v any) int {
	if v == nil {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := toTime(v); ok {
		return 9
	}
	switch v.(type) {
	case string:
		return 3
	case bson.M, map[string]any, bson.D:
		return 4
	case []byte, primitive.Binary:
		return 6
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	}
	if _, ok := asArray(v); ok {
		return 5
	}
	return 10
}

// Compare orders two values the way MongoDB sorts them.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case 1:
		return 0
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	case 4:
		da, _ := asDocument(a)
		db, _ := asDocument(b)
		return compareDocuments(da, db)
	case 5:
		aa, _ := asArray(a)
		ab, _ := asArray(b)
		for i := 0; i < len(aa) && i < len(ab); i++ {
			if c := Compare(aa[i], ab[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(aa), len(ab))
	case 6:
		return bytes.Compare(binaryBytes(a), binaryBytes(b))
	case 7:
		oa, ob := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(oa[:], ob[:])
	case 8:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 9:
		ta, _ := toTime(a)
		tb, _ := toTime(b)
		return ta.Compare(tb)
	}
	return strings.Compare(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

// Equal reports value equality with numeric types normalised.
func Equal(a, b any) bool {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return false
	}
	if ra == 10 {
		return reflect.DeepEqual(a, b)
	}
	return Compare(a, b) == 0
}

func compareDocuments(a, b bson.M) int {
	keys := sortedKeys(a)
	other := sortedKeys(b)
	for i := 0; i < len(keys) && i < len(other); i++ {
		if c := strings.Compare(keys[i], other[i]); c != 0 {
			return c
		}
		if c := Compare(a[keys[i]], b[other[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(keys), len(other))
}

func binaryBytes(v any) []byte {
	if b, ok := v.(primitive.Binary); ok {
		return b.Data
	}
	return v.([]byte)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Lookup resolves a dotted path inside doc. Numeric segments index arrays;
// other segments over an array collect the field from every element.
func Lookup(doc bson.M, path string) (any, bool) {
	return lookupValue(doc, strings.Split(path, "."))
}

func lookupValue(v any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return v, true
	}
	if d, ok := asDocument(v); ok {
		next, exists := d[parts[0]]
		if !exists {
			return nil, false
		}
		return lookupValue(next, parts[1:])
	}
	if arr, ok := asArray(v); ok {
		if idx, err := strconv.Atoi(parts[0]); err == nil {
			if idx < 0 || idx >= len(arr) {
				return nil, false
			}
			return lookupValue(arr[idx], parts[1:])
		}
		var collected bson.A
		for _, el := range arr {
			if found, ok := lookupValue(el, parts); ok {
				collected = append(collected, found)
			}
		}
		if len(collected) == 0 {
			return nil, false
		}
		return collected, true
	}
	return nil, false
}

func setPath(doc bson.M, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[part])
		if !ok {
			next = bson.M{}
		}
		// asDocument copies bson.D, so write back before descending.
		cur[part] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func unsetPath(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[part])
		if !ok {
			return
		}
		cur[part] = next
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func sortedKeys(m bson.M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func numberResult(f float64, a, b any) any {
	_, aFloat := a.(float64)
	_, bFloat := b.(float64)
	if aFloat || bFloat || f != math.Trunc(f) {
		return f
	}
	return int64(f)
}
