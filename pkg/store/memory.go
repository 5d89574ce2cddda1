package store

import (
	"github.com/algorand/go-deadlock"
)

// An in-memory StateStore; Save only clears the dirty bit
type MemoryStore struct {
	mu     deadlock.RWMutex
	keys   []string
	values map[string][]string
	dirty  bool
	saves  int

	// Set to make every Save fail, for exercising write failure handling
	FailWrites bool
	failed     bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]string)}
}

func (s *MemoryStore) Values(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneValues(s.values[key])
}

func (s *MemoryStore) SetValues(key string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys, s.values = setValues(s.keys, s.values, key, values)
}

// Keys returns the stored keys in insertion order
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

func (s *MemoryStore) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

func (s *MemoryStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *MemoryStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if s.FailWrites {
		s.failed = true
		return NewStoreError(nil, "memory store write refused")
	}

	s.failed = false
	s.dirty = false
	s.saves++
	return nil
}

// Saves counts successful writes
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *MemoryStore) LastWriteFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

func cloneValues(v []string) []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}

func setValues(keys []string, m map[string][]string, key string, values []string) ([]string, map[string][]string) {
	_, exists := m[key]
	if len(values) == 0 {
		if exists {
			delete(m, key)
			for i, k := range keys {
				if k == key {
					keys = append(keys[:i], keys[i+1:]...)
					break
				}
			}
		}
		return keys, m
	}

	if !exists {
		keys = append(keys, key)
	}
	m[key] = cloneValues(values)
	return keys, m
}
