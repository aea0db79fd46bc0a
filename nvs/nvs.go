// Package nvs is a small namespaced key-value store for settings that must
// survive a power cycle.
package nvs

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("key not found")

// Store holds typed values under string keys within one namespace.
type Store interface {
	GetInt(key string) (int, error)
	PutInt(key string, v int) error
	GetBool(key string) (bool, error)
	PutBool(key string, v bool) error
}

// Memory is a Store that lives only as long as the process. Used in tests and
// when no storage path is configured.
type Memory struct {
	mu     sync.Mutex
	values map[string]any
	writes int
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]any)}
}

func (m *Memory) GetInt(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key].(int)
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

func (m *Memory) PutInt(key string, v int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = v
	m.writes++
	return nil
}

func (m *Memory) GetBool(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key].(bool)
	if !ok {
		return false, ErrNotFound
	}
	return v, nil
}

func (m *Memory) PutBool(key string, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = v
	m.writes++
	return nil
}

// Writes returns the number of Put calls so far.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
