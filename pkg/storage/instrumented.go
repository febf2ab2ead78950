package storage

import (
	"context"
	"time"
)

// Recorder receives timings for storage calls.
type Recorder interface {
	ObserveStorage(driver, op string, err error, duration time.Duration)
}

// Instrument wraps backend so every namespace call is reported to rec under
// the given driver label. A nil rec returns backend unchanged.
func Instrument(backend Backend, driver string, rec Recorder) Backend {
	if rec == nil {
		return backend
	}
	return &instrumentedBackend{backend: backend, driver: driver, rec: rec}
}

type instrumentedBackend struct {
	backend Backend
	driver  string
	rec     Recorder
}

func (b *instrumentedBackend) Namespace(id string) KeyValue {
	return &instrumentedNamespace{kv: b.backend.Namespace(id), parent: b}
}

type instrumentedNamespace struct {
	kv     KeyValue
	parent *instrumentedBackend
}

func (n *instrumentedNamespace) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	value, ok, err := n.kv.Get(ctx, key)
	n.parent.rec.ObserveStorage(n.parent.driver, "get", err, time.Since(start))
	return value, ok, err
}

func (n *instrumentedNamespace) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := n.kv.Set(ctx, key, value)
	n.parent.rec.ObserveStorage(n.parent.driver, "set", err, time.Since(start))
	return err
}

func (n *instrumentedNamespace) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := n.kv.Remove(ctx, key)
	n.parent.rec.ObserveStorage(n.parent.driver, "remove", err, time.Since(start))
	return err
}
