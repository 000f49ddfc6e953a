/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package txcontext

import (
	"context"
	"net/http"
	"sync"

	"github.com/suparena/docstore/datastore"
)

type storeKey struct{}

// store is the single session slot of one logical execution.
type store struct {
	mu      sync.RWMutex
	session datastore.Session
}

// WithStore returns a child of ctx carrying a fresh, empty slot.
// Everything derived from the returned context shares the slot; a slot
// installed further down shadows it.
func WithStore(ctx context.Context) context.Context {
	return context.WithValue(ctx, storeKey{}, &store{})
}

// HasStore reports whether ctx carries a slot.
func HasStore(ctx context.Context) bool {
	_, ok := ctx.Value(storeKey{}).(*store)
	return ok
}

// Get returns the session published in ctx's slot, or nil.
func Get(ctx context.Context) datastore.Session {
	s, ok := ctx.Value(storeKey{}).(*store)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Set publishes sess in ctx's slot; Set(ctx, nil) clears it.
// It returns false when ctx carries no slot.
func Set(ctx context.Context, sess datastore.Session) bool {
	s, ok := ctx.Value(storeKey{}).(*store)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
	return true
}

// Middleware gives every request its own slot.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithStore(r.Context())))
	})
}
