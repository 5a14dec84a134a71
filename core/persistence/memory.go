package persistence

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// UnsupportedStore stands in when no storage backend is available.
type UnsupportedStore struct{}

var _ Store = UnsupportedStore{}

func (UnsupportedStore) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrUnsupported
}

func (UnsupportedStore) Set(context.Context, string, string) error { return ErrUnsupported }

func (UnsupportedStore) Remove(context.Context, string) error { return ErrUnsupported }
