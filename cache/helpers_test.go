package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errTierDown = errors.New("tier down")

// fakeTier is an in-memory tier that counts calls and can be made to fail.
type fakeTier[T any] struct {
	name string

	mu    sync.Mutex
	items map[string]Item[T]
	adds  []string // keys in Add order, for ordering assertions

	gets      atomic.Int32
	failGet   atomic.Bool
	failAdd   atomic.Bool
	failAdmin atomic.Bool

	// onAdd, when set, is called after every successful Add.
	onAdd func(name, key string)
}

func newFakeTier[T any](name string) *fakeTier[T] {
	return &fakeTier[T]{name: name, items: make(map[string]Item[T])}
}

func (f *fakeTier[T]) Name() string { return f.name }

func (f *fakeTier[T]) Get(_ context.Context, key string) (Item[T], bool, error) {
	f.gets.Add(1)
	if f.failGet.Load() {
		return Item[T]{}, false, errTierDown
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	return it, ok, nil
}

func (f *fakeTier[T]) Add(_ context.Context, key string, item Item[T]) error {
	if f.failAdd.Load() {
		return errTierDown
	}
	f.mu.Lock()
	f.items[key] = item
	f.adds = append(f.adds, key)
	f.mu.Unlock()
	if f.onAdd != nil {
		f.onAdd(f.name, key)
	}
	return nil
}

func (f *fakeTier[T]) Remove(_ context.Context, key string) error {
	if f.failAdmin.Load() {
		return errTierDown
	}
	f.mu.Lock()
	delete(f.items, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeTier[T]) Clear(_ context.Context) error {
	if f.failAdmin.Load() {
		return errTierDown
	}
	f.mu.Lock()
	clear(f.items)
	f.mu.Unlock()
	return nil
}

// peek reads the raw stored item without counting a Get.
func (f *fakeTier[T]) peek(key string) (Item[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	return it, ok
}

func (f *fakeTier[T]) put(key string, it Item[T]) {
	f.mu.Lock()
	f.items[key] = it
	f.mu.Unlock()
}

func (f *fakeTier[T]) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.adds)
}

// tiersOf converts fakes to the Tier slice New expects.
func tiersOf[T any](fs ...*fakeTier[T]) []Tier[T] {
	out := make([]Tier[T], len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

// eventLog records observed events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(_ context.Context, ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, k := range l.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}
