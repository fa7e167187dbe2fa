package cache

import (
	"context"
	"sync"
)

// Memory is an in-process backend, used by the CLI's --memory flag and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]any
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]any)}
}

func (m *Memory) Add(_ context.Context, key string, value any) error {
	if _, _, err := encode(value); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		m.entries[key] = value
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory) Peek(ctx context.Context, key string, def any) (any, bool, error) {
	v, ok, err := m.Get(ctx, key)
	if !ok {
		return def, false, err
	}
	return v, true, err
}

func (m *Memory) Len(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}
