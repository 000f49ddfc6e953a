/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"reflect"
	"sync"
)

// IndexMapRegistry is a registry for Go types and their key-attribute templates.

var (
	indexMapRegistry = make(map[reflect.Type]map[string]string)
	mu               sync.RWMutex
)

// RegisterIndexMap associates a Go type T with a given index map (PK, SK, etc.).
// Templates reference document fields with macros, e.g. "USER#{_id}".
func RegisterIndexMap[T any](idxMap map[string]string) {
	t := typeOf[T]()

	mu.Lock()
	defer mu.Unlock()
	indexMapRegistry[t] = idxMap
}

// GetIndexMap retrieves the indexMap for type T, if any.
func GetIndexMap[T any]() (map[string]string, bool) {
	t := typeOf[T]()

	mu.RLock()
	defer mu.RUnlock()
	m, ok := indexMapRegistry[t]
	return m, ok
}

// UnregisterIndexMap removes the index map for type T.
func UnregisterIndexMap[T any]() {
	t := typeOf[T]()

	mu.Lock()
	defer mu.Unlock()
	delete(indexMapRegistry, t)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
