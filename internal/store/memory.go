package store

import (
	"context"
	"sync"

	"github.com/coldwatch/coldwatch/internal/types"
)

// MemoryRecords keeps the most recent readings in memory. Used when no
// database is configured.
type MemoryRecords struct {
	mu       sync.RWMutex
	buffer   []types.Reading
	capacity int
}

// NewMemoryRecords creates a buffer holding at most capacity readings
func NewMemoryRecords(capacity int) *MemoryRecords {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryRecords{
		buffer:   make([]types.Reading, 0, capacity),
		capacity: capacity,
	}
}

// AppendRecord adds r, evicting the oldest reading when full
func (m *MemoryRecords) AppendRecord(_ context.Context, r types.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.buffer) >= m.capacity {
		copy(m.buffer, m.buffer[1:])
		m.buffer = m.buffer[:len(m.buffer)-1]
	}
	m.buffer = append(m.buffer, r)
	return nil
}

// Recent returns up to limit most recent readings, newest first
func (m *MemoryRecords) Recent(_ context.Context, limit int) ([]types.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.buffer) {
		limit = len(m.buffer)
	}
	out := make([]types.Reading, 0, limit)
	for i := len(m.buffer) - 1; i >= len(m.buffer)-limit; i-- {
		out = append(out, m.buffer[i])
	}
	return out, nil
}
