package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileBackend persists each namespace as a JSON document under a base
// directory. Writes go through a temp file and rename so a crash never leaves
// a half-written session behind.
type FileBackend struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileBackend ensures the base directory exists and returns a handle.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		baseDir = "./sessions"
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}
	return &FileBackend{baseDir: baseDir}, nil
}

// Namespace returns the namespace for id.
func (b *FileBackend) Namespace(id string) KeyValue {
	return &fileNamespace{backend: b, id: id}
}

// CleanupOlderThan removes namespaces not written within ttl and returns the
// removed namespace ids.
func (b *FileBackend) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	entries, err := os.ReadDir(b.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	deleted := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return deleted, fmt.Errorf("stat session %s: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(b.baseDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return deleted, fmt.Errorf("delete session %s: %w", entry.Name(), err)
		}
		deleted = append(deleted, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return deleted, nil
}

func (b *FileBackend) resolve(id string) string {
	return filepath.Join(b.baseDir, filepath.Base(filepath.Clean("/"+id))+".json")
}

func (b *FileBackend) read(id string) (map[string]string, error) {
	raw, err := os.ReadFile(b.resolve(id))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	doc := map[string]string{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return doc, nil
}

func (b *FileBackend) write(id string, doc map[string]string) error {
	path := b.resolve(id)
	if len(doc) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete session file: %w", err)
		}
		return nil
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	tmp, err := os.CreateTemp(b.baseDir, ".session-*")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write session temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close session temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

type fileNamespace struct {
	backend *FileBackend
	id      string
}

func (n *fileNamespace) Get(_ context.Context, key string) (string, bool, error) {
	n.backend.mu.Lock()
	defer n.backend.mu.Unlock()
	doc, err := n.backend.read(n.id)
	if err != nil {
		return "", false, err
	}
	value, ok := doc[key]
	return value, ok, nil
}

func (n *fileNamespace) Set(_ context.Context, key, value string) error {
	n.backend.mu.Lock()
	defer n.backend.mu.Unlock()
	doc, err := n.backend.read(n.id)
	if err != nil {
		// unreadable documents are overwritten
		doc = map[string]string{}
	}
	doc[key] = value
	return n.backend.write(n.id, doc)
}

func (n *fileNamespace) Remove(_ context.Context, key string) error {
	n.backend.mu.Lock()
	defer n.backend.mu.Unlock()
	doc, err := n.backend.read(n.id)
	if err != nil {
		return n.backend.write(n.id, nil)
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return n.backend.write(n.id, doc)
}
