// Package state holds the generic container behind the cart and saved-items
// stores: one value guarded by a mutex, observable through subscriptions,
// with commit hooks for write-through persistence.
package state

import (
	"context"
	"sync"
)

// Store is a single shared value with get/subscribe/update semantics. It is
// safe for concurrent use; updates run one at a time.
type Store[T any] struct {
	clone func(T) T

	mu    sync.Mutex
	value T
	hooks []func(context.Context, T)

	subsMu sync.RWMutex
	subs   map[uint64]func(T)
	nextID uint64
}

// New creates a store holding initial. clone must return a copy that shares
// no mutable memory with its argument; it is used for every snapshot.
func New[T any](initial T, clone func(T) T) *Store[T] {
	return &Store[T]{
		clone: clone,
		value: initial,
		subs:  make(map[uint64]func(T)),
	}
}

// Get returns a snapshot of the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clone(s.value)
}

// Update applies fn to the value. If fn reports a change, commit hooks run
// before the lock is released and subscribers are then called with a
// snapshot. The returned snapshot reflects the value after fn.
func (s *Store[T]) Update(ctx context.Context, fn func(v *T) (changed bool)) T {
	s.mu.Lock()
	changed := fn(&s.value)
	snapshot := s.clone(s.value)
	if changed {
		for _, hook := range s.hooks {
			hook(ctx, snapshot)
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify(snapshot)
	}
	return snapshot
}

// Subscribe registers fn to receive a snapshot after every change. Call the
// returned func to unsubscribe.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// OnCommit registers a hook run, under the store lock, after every change.
// Hooks must not call back into the store.
func (s *Store[T]) OnCommit(hook func(ctx context.Context, v T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// replace sets the value without running hooks or notifying subscribers.
func (s *Store[T]) replace(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}

func (s *Store[T]) notify(snapshot T) {
	s.subsMu.RLock()
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
