package cache

import (
	"context"
	"sync"
)

// Memory is an in-process ContentHandler. Entries live for the lifetime of
// the process; a nil stored value is a negative marker.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*string
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*string)}
}

// GetContent implements ContentHandler.
func (m *Memory) GetContent(_ context.Context, uri string) (string, error) {
	m.mu.RLock()
	entry, ok := m.entries[uri]
	m.mu.RUnlock()

	if !ok {
		return "", ErrNotCached
	}
	if entry == nil {
		return "", ErrAbsent
	}
	return *entry, nil
}

// SaveContent implements ContentHandler.
func (m *Memory) SaveContent(_ context.Context, uri, payload string) error {
	m.mu.Lock()
	m.entries[uri] = &payload
	m.mu.Unlock()
	return nil
}

// SaveAbsent implements ContentHandler.
func (m *Memory) SaveAbsent(_ context.Context, uri string) error {
	m.mu.Lock()
	m.entries[uri] = nil
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries, negative markers included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
