// Package memory provides a thread-safe in-memory implementation of storage.KV.
package memory

import (
	"context"
	"sync"

	"github.com/iudanet/authflow/internal/client/storage"
)

// Store is a thread-safe in-memory KV.
// Suitable for testing and single-process use; values are lost on exit.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ storage.KV = (*Store)(nil)

// New creates an empty Store
func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()

	if got, ok := s.Get(ctx, key); !ok || got != value {
		return storage.ErrVerifyFailed
	}
	return nil
}

func (s *Store) Remove(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Len returns the number of stored keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
