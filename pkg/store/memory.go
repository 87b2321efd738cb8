package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store.
// Values are copied on the way in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]Entry
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

// Get returns the entry for key.
func (m *MemoryStore) Get(ctx context.Context, key []byte) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Entry{}, ErrClosed
	}
	e, ok := m.data[string(key)]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return cloneEntry(e), nil
}

// Put writes entry after the version check.
func (m *MemoryStore) Put(ctx context.Context, entry Entry, expectedVersion []byte, force bool) error {
	return m.Apply(ctx, []Op{{Type: OpPut, Entry: entry, ExpectedVersion: expectedVersion, Force: force}})
}

// Delete removes key after the version check.
func (m *MemoryStore) Delete(ctx context.Context, key, expectedVersion []byte, force bool) error {
	return m.Apply(ctx, []Op{{Type: OpDelete, Entry: Entry{Key: key}, ExpectedVersion: expectedVersion, Force: force}})
}

// Apply runs ops atomically. Later ops see the effect of earlier ones.
func (m *MemoryStore) Apply(ctx context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	// Stage on an overlay; nil marks a delete.
	overlay := make(map[string]*Entry, len(ops))
	current := func(key string) *Entry {
		if e, ok := overlay[key]; ok {
			return e
		}
		if e, ok := m.data[key]; ok {
			return &e
		}
		return nil
	}

	for i, op := range ops {
		key := string(op.Entry.Key)
		if err := checkVersion(current(key), op.ExpectedVersion, op.Force, op.Type); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Type, err)
		}
		switch op.Type {
		case OpPut:
			e := cloneEntry(op.Entry)
			overlay[key] = &e
		case OpDelete:
			overlay[key] = nil
		default:
			return fmt.Errorf("op %d: unknown type %d", i, op.Type)
		}
	}

	for key, e := range overlay {
		if e == nil {
			delete(m.data, key)
		} else {
			m.data[key] = *e
		}
	}
	return nil
}

// Scan calls fn for every entry in key order, on a snapshot taken at the
// start of the scan.
func (m *MemoryStore) Scan(ctx context.Context, fn func(Entry) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	keys := slices.Sorted(maps.Keys(m.data))
	snapshot := make([]Entry, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, cloneEntry(m.data[k]))
	}
	m.mu.RUnlock()

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Optimize is a no-op for memory.
func (m *MemoryStore) Optimize(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Reset removes all entries.
func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	clear(m.data)
	return nil
}

// Len returns the number of entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
