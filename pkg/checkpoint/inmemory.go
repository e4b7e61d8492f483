package checkpoint

import (
	"context"
	"sync"
)

// InMemoryStore is a thread-safe, in-memory Store. Checkpoints are lost on
// restart, so it suits tests and one-shot runs.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[int]int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data: make(map[int]int64),
	}
}

// Load returns the checkpoint for the stream, or 0 if none was saved.
func (s *InMemoryStore) Load(_ context.Context, streamID int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[streamID], nil
}

// Save stores the checkpoint for the stream.
func (s *InMemoryStore) Save(_ context.Context, streamID int, lastID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[streamID] = lastID
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
