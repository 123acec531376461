// Package memory stores page snapshots in-memory for development.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// SnapshotStore keeps snapshot content in process memory and returns
// pseudo URIs.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory snapshot store.
func New() *SnapshotStore {
	return &SnapshotStore{data: make(map[string][]byte)}
}

// PutObject records the content and returns a memory:// URI.
func (s *SnapshotStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", path), nil
}

// Object returns the stored content for a path; the second return reports
// presence.
func (s *SnapshotStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports the number of stored snapshots.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
