package memory

import (
	"context"
	"sync"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Backend keeps values in process memory. Nothing survives a restart.
type Backend struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{values: make(map[string]string)}
}

func (b *Backend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	if !ok {
		return "", apperrors.NotFound("key", key)
	}
	return v, nil
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

func (b *Backend) Ping(context.Context) error { return nil }

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
