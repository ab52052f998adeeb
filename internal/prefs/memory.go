package prefs

import (
	"context"
	"sync"
)

// Memory is a Store that keeps values in process memory. It is used when no
// preferences path is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, profile, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[profile+"\x00"+key]
	if !ok {
		return nil, ErrMissing
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, profile, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[profile+"\x00"+key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Close() error { return nil }
