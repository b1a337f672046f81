package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-memory Store. The zero value is ready to use.
type Memory struct {
	mu sync.Mutex
	m  map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Get implements Store.
func (s *Memory) Get(ctx context.Context, key string, dst interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	data, ok := s.m[key]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchKey, key)
	}
	return json.Unmarshal(data, dst)
}

// Set implements Store.
func (s *Memory) Set(ctx context.Context, key string, value interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string][]byte)
	}
	s.m[key] = data
	return nil
}

// Delete implements Store.
func (s *Memory) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Raw returns the encoded value for key, for inspection in tests.
func (s *Memory) Raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.m[key]
	return data, ok
}
