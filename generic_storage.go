/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// TypedServices holds the Services for entity type T, keyed by collection name.
type TypedServices[T any] struct {
	mu       sync.RWMutex
	services map[string]*Service[T]
}

// NewTypedServices creates an empty TypedServices for type T
func NewTypedServices[T any]() *TypedServices[T] {
	return &TypedServices[T]{
		services: make(map[string]*Service[T]),
	}
}

// Register adds svc under its collection name
func (ts *TypedServices[T]) Register(svc *Service[T]) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	name := svc.Name()
	if _, exists := ts.services[name]; exists {
		return fmt.Errorf("service for collection %q already registered", name)
	}
	ts.services[name] = svc
	return nil
}

// Get retrieves the service for a collection
func (ts *TypedServices[T]) Get(name string) (*Service[T], error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	svc, exists := ts.services[name]
	if !exists {
		return nil, fmt.Errorf("service for collection %q not found", name)
	}
	return svc, nil
}

// Remove deletes the service for a collection
func (ts *TypedServices[T]) Remove(name string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, exists := ts.services[name]; !exists {
		return fmt.Errorf("service for collection %q not found", name)
	}
	delete(ts.services, name)
	return nil
}

// List returns the registered collection names, sorted
func (ts *TypedServices[T]) List() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	names := make([]string, 0, len(ts.services))
	for name := range ts.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceRegistry manages TypedServices for different entity types
type ServiceRegistry struct {
	mu    sync.Mutex
	types map[reflect.Type]any
}

// NewServiceRegistry creates an empty ServiceRegistry
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		types: make(map[reflect.Type]any),
	}
}

// Services returns the TypedServices for T, creating it if necessary
func Services[T any](r *ServiceRegistry) *TypedServices[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if ts, exists := r.types[typ]; exists {
		return ts.(*TypedServices[T])
	}

	ts := NewTypedServices[T]()
	r.types[typ] = ts
	return ts
}

// RegisterService registers svc for type T under its collection name
func RegisterService[T any](r *ServiceRegistry, svc *Service[T]) error {
	return Services[T](r).Register(svc)
}

// GetService returns the Service for type T and collection name
func GetService[T any](r *ServiceRegistry, name string) (*Service[T], error) {
	return Services[T](r).Get(name)
}

// RemoveService removes the Service for type T and collection name
func RemoveService[T any](r *ServiceRegistry, name string) error {
	return Services[T](r).Remove(name)
}

// ListServices lists the collection names registered for type T
func ListServices[T any](r *ServiceRegistry) []string {
	return Services[T](r).List()
}
