// Package memory provides a map-backed cache tier for a single process.
// It performs no eviction: expired entries stay until overwritten, removed
// or cleared.
package memory

import (
	"context"
	"sync"

	"github.com/Keksclan/layercache/cache"
)

// Tier is an in-process map tier. All methods are safe for concurrent use.
type Tier[T any] struct {
	name string

	mu    sync.RWMutex
	items map[string]cache.Item[T]
}

// New creates an empty memory tier labelled name.
func New[T any](name string) *Tier[T] {
	return &Tier[T]{
		name:  name,
		items: make(map[string]cache.Item[T]),
	}
}

// Name returns the label given to New.
func (t *Tier[T]) Name() string { return t.name }

// Get returns the item stored under key, expired or not.
func (t *Tier[T]) Get(_ context.Context, key string) (cache.Item[T], bool, error) {
	t.mu.RLock()
	it, ok := t.items[key]
	t.mu.RUnlock()
	return it, ok, nil
}

// Add stores item under key.
func (t *Tier[T]) Add(_ context.Context, key string, item cache.Item[T]) error {
	t.mu.Lock()
	t.items[key] = item
	t.mu.Unlock()
	return nil
}

// Remove deletes key.
func (t *Tier[T]) Remove(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.items, key)
	t.mu.Unlock()
	return nil
}

// Clear drops every entry.
func (t *Tier[T]) Clear(_ context.Context) error {
	t.mu.Lock()
	clear(t.items)
	t.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones.
func (t *Tier[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

var _ cache.Tier[int] = (*Tier[int])(nil)
