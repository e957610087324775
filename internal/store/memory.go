package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. Used by `run --backend memory` and tests.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, collection, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[collection][key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *Memory) Set(ctx context.Context, collection, key string, value []byte) error {
	return m.Apply(ctx, Set(collection, key, value))
}

func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	return m.Apply(ctx, Delete(collection, key))
}

// ListAll returns values ordered by key.
func (m *Memory) ListAll(ctx context.Context, collection string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	coll := m.data[collection]
	keys := make([]string, 0, len(coll))
	for k := range coll {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, clone(coll[k]))
	}
	return out, nil
}

func (m *Memory) SetIfAbsent(ctx context.Context, collection, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	if _, ok := m.data[collection][key]; ok {
		return false, nil
	}
	m.put(collection, key, value)
	return true, nil
}

func (m *Memory) Apply(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			m.put(op.Collection, op.Key, op.Value)
		case OpDelete:
			delete(m.data[op.Collection], op.Key)
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) put(collection, key string, value []byte) {
	coll, ok := m.data[collection]
	if !ok {
		coll = make(map[string][]byte)
		m.data[collection] = coll
	}
	coll[key] = clone(value)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
