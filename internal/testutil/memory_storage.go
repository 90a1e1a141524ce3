// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory key-value slot store for tests.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
	sets   int

	// Error injection for testing
	GetErr error
	SetErr error

	// SetHook runs before every Set, outside the lock.
	SetHook func(key, value string)
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Put stores a value directly, bypassing error injection.
func (m *MemoryStorage) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Value returns the stored value directly.
func (m *MemoryStorage) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Sets returns the number of successful Set calls.
func (m *MemoryStorage) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// FailSets makes subsequent Set calls return err; nil clears it.
func (m *MemoryStorage) FailSets(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetErr = err
}

// Get implements service.Storage.
func (m *MemoryStorage) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements service.Storage.
func (m *MemoryStorage) Set(ctx context.Context, key, value string) error {
	if m.SetHook != nil {
		m.SetHook(key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = value
	m.sets++
	return nil
}
