// Package archive stores raw crawl results for operator reconciliation.
package archive

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory archive for development/tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory constructs a Memory archive.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// PutObject stores data under path and returns a mem:// URI.
func (m *Memory) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[path] = cp
	return "mem://" + path, nil
}

// Object returns the stored bytes for path, if present.
func (m *Memory) Object(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	return data, ok
}
