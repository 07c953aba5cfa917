// Package storage provides the durable key-value channel that review state
// is persisted to. The in-memory backend mirrors a browser's extension
// storage for tests; the SQLite backend survives process restarts and can
// be shared by several processes.
package storage

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// ErrConflict is returned by Swap when another writer moved the key past
// the revision the caller last saw.
var ErrConflict = errors.New("storage: revision conflict")

// Storage is a durable string-keyed byte store. Every key carries a
// revision that strictly grows on each write; 0 means the key is absent.
type Storage interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Load returns the value and revision of key.
	Load(ctx context.Context, key string) ([]byte, int64, error)
	// Swap writes value only if key is still at revision rev and returns
	// the new revision. Nothing is written on ErrConflict.
	Swap(ctx context.Context, key string, value []byte, rev int64) (int64, error)
	Close() error
}

type entry struct {
	value []byte
	rev   int64
}

// Memory is a Storage backed by a map.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]entry
	clock int64
	// failWith, when set, is returned by every operation.
	failWith error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry)}
}

// FailWith makes every subsequent operation return err. Pass nil to heal.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, rev, err := m.Load(ctx, key)
	return v, rev != 0, err
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	e, ok := m.data[key]
	if !ok {
		return nil, 0, nil
	}
	return append([]byte(nil), e.value...), e.rev, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.putLocked(key, value)
	return nil
}

func (m *Memory) Swap(_ context.Context, key string, value []byte, rev int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	if m.data[key].rev != rev {
		return 0, ErrConflict
	}
	return m.putLocked(key, value), nil
}

func (m *Memory) putLocked(key string, value []byte) int64 {
	m.clock++
	m.data[key] = entry{value: append([]byte(nil), value...), rev: m.clock}
	return m.clock
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	delete(m.data, key)
	return nil
}

// Keys returns a copy of the stored keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range maps.Keys(m.data) {
		out = append(out, k)
	}
	return out
}

func (m *Memory) Close() error { return nil }
