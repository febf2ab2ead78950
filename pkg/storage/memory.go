package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps namespaces in process memory. Sessions survive page
// loads but not a restart of the dashboard process.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string]string)}
}

// Namespace returns the namespace for id.
func (b *MemoryBackend) Namespace(id string) KeyValue {
	return &memoryNamespace{backend: b, id: id}
}

// Len reports how many namespaces hold at least one key.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

type memoryNamespace struct {
	backend *MemoryBackend
	id      string
}

func (n *memoryNamespace) Get(_ context.Context, key string) (string, bool, error) {
	n.backend.mu.RLock()
	defer n.backend.mu.RUnlock()
	value, ok := n.backend.data[n.id][key]
	return value, ok, nil
}

func (n *memoryNamespace) Set(_ context.Context, key, value string) error {
	n.backend.mu.Lock()
	defer n.backend.mu.Unlock()
	ns, ok := n.backend.data[n.id]
	if !ok {
		ns = make(map[string]string)
		n.backend.data[n.id] = ns
	}
	ns[key] = value
	return nil
}

func (n *memoryNamespace) Remove(_ context.Context, key string) error {
	n.backend.mu.Lock()
	defer n.backend.mu.Unlock()
	ns, ok := n.backend.data[n.id]
	if !ok {
		return nil
	}
	delete(ns, key)
	if len(ns) == 0 {
		delete(n.backend.data, n.id)
	}
	return nil
}
