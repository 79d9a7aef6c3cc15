package document

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

type memoryEntry struct {
	version Version
	body    []byte
}

// MemoryBackend keeps documents in process memory. Bodies are stored as JSON
// so callers observe the same value semantics as with the remote stores.
// Durability settings are accepted and ignored.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	counter Version
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

func (m *MemoryBackend) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return Record{}, ErrKeyNotFound
	}

	return entry.record(id)
}

func (m *MemoryBackend) Query(ctx context.Context, docType string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := m.entries[id].record(id)
		if err != nil {
			return nil, err
		}
		if recordType(rec.Body) == docType {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Insert(ctx context.Context, id string, body Fields, _ Durability) (Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[id]; exists {
		return 0, ErrKeyExists
	}

	m.counter++
	m.entries[id] = memoryEntry{version: m.counter, body: raw}
	return m.counter, nil
}

func (m *MemoryBackend) Replace(ctx context.Context, id string, body Fields, expected Version, _ Durability) (Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.entries[id]
	if !exists {
		return 0, ErrKeyNotFound
	}
	if current.version != expected {
		return 0, ErrCASMismatch
	}

	m.counter++
	m.entries[id] = memoryEntry{version: m.counter, body: raw}
	return m.counter, nil
}

func (m *MemoryBackend) Remove(ctx context.Context, id string, _ Durability) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[id]; !exists {
		return ErrKeyNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored documents of any type
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (e memoryEntry) record(id string) (Record, error) {
	var body Fields
	if err := json.Unmarshal(e.body, &body); err != nil {
		return Record{}, fmt.Errorf("failed to deserialize document %s: %w", id, err)
	}
	return Record{ID: id, Version: e.version, Body: body}, nil
}
