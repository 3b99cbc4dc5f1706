package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryBackend struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryBackend returns a process-local [Backend]. Nothing survives a
// restart; it is meant for tests and throwaway sessions.
func NewMemoryBackend() Backend {
	return &memoryBackend{items: make(map[string]string)}
}

func (b *memoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.items[key]
	return v, ok, nil
}

func (b *memoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[key] = value
	return nil
}

func (b *memoryBackend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.items, key)
	return nil
}

func (b *memoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return sortedKeys(b.items, prefix), nil
}

func (b *memoryBackend) Close() error {
	return nil
}

func sortedKeys(items map[string]string, prefix string) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
