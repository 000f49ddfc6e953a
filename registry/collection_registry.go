/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"sync"
)

// collectionRegistry maps entity types to the collection (or entity type name) they live in.
var (
	collectionRegistry = make(map[reflect.Type]string)
	collectionMu       sync.RWMutex
)

// RegisterCollection registers the collection name for entity type T.
// If T is already registered under a different name, it panics to prevent accidental overrides.
func RegisterCollection[T any](name string) {
	t := typeOf[T]()

	collectionMu.Lock()
	defer collectionMu.Unlock()
	if existing, exists := collectionRegistry[t]; exists && existing != name {
		panic(fmt.Sprintf("collection registry: %s already registered as %q", t, existing))
	}
	collectionRegistry[t] = name
}

// CollectionName returns the registered collection name for T.
func CollectionName[T any]() (string, error) {
	t := typeOf[T]()

	collectionMu.RLock()
	defer collectionMu.RUnlock()
	name, ok := collectionRegistry[t]
	if !ok {
		return "", fmt.Errorf("collection registry: no collection registered for %s", t)
	}
	return name, nil
}
