// Package storage provides the key-value backends that mirror visitor
// sessions. Each visitor gets an isolated namespace, the server-side
// equivalent of one browser's localStorage.
package storage

import "context"

// KeyValue is a string key-value namespace.
type KeyValue interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Backend hands out per-visitor namespaces.
type Backend interface {
	Namespace(id string) KeyValue
}
