// ABOUTME: In-memory Store implementation for tests and ephemeral sessions
// ABOUTME: Mirrors SQLiteStore semantics including atomic session writes

package storage

import (
	"sync"
)

// MemoryStore implements Store with an in-memory map. Used by tests and by
// callers that explicitly opt out of durable sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key, or ErrKeyNotFound
func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set writes the value for key
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Delete removes key
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// SetSession writes the session keys under a single lock
func (m *MemoryStore) SetSession(rec SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[KeyAuthToken] = rec.Token
	m.values[KeyUserData] = rec.UserData
	m.values[KeyAuthMethod] = rec.Method
	m.values[KeyUserType] = rec.Method
	return nil
}

// GetSession reads the session keys under a single lock
func (m *MemoryStore) GetSession() (SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, ok := m.values[KeyAuthToken]
	if !ok {
		return SessionRecord{}, ErrKeyNotFound
	}
	return SessionRecord{
		Token:    token,
		UserData: m.values[KeyUserData],
		Method:   m.values[KeyAuthMethod],
	}, nil
}

// ClearSession removes the session keys under a single lock
func (m *MemoryStore) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, KeyAuthToken)
	delete(m.values, KeyUserData)
	delete(m.values, KeyAuthMethod)
	delete(m.values, KeyUserType)
	return nil
}

// Close is a no-op for the in-memory store
func (m *MemoryStore) Close() error {
	return nil
}
