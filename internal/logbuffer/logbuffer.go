// Package logbuffer keeps the most recent log lines in memory so the status
// server can show them without access to the log file.
package logbuffer

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one captured log line
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// Buffer is a fixed-size ring of log entries. It implements io.Writer and
// expects one zerolog JSON event per Write.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	size    int
	head    int
	count   int
	now     func() time.Time
}

// New creates a buffer holding at most size entries
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{
		entries: make([]Entry, size),
		size:    size,
		now:     time.Now,
	}
}

// line is the subset of a zerolog event the buffer indexes on
type line struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Time      string `json:"time"`
}

// Write implements io.Writer
func (b *Buffer) Write(p []byte) (int, error) {
	raw := strings.TrimRight(string(p), "\n")
	entry := Entry{
		Timestamp: b.now(),
		Level:     zerolog.InfoLevel.String(),
		Message:   raw,
		Raw:       raw,
	}

	var parsed line
	if err := json.Unmarshal(p, &parsed); err == nil {
		if parsed.Level != "" {
			entry.Level = parsed.Level
		}
		if parsed.Message != "" {
			entry.Message = parsed.Message
		}
		entry.Component = parsed.Component
		if ts, err := time.Parse(zerolog.TimeFieldFormat, parsed.Time); err == nil {
			entry.Timestamp = ts
		}
	}

	b.mu.Lock()
	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
	b.mu.Unlock()

	return len(p), nil
}

// Entries returns all entries, oldest first
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, b.count)
	start := 0
	if b.count == b.size {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(start+i)%b.size]
	}
	return out
}

// Recent returns the newest n entries, oldest first
func (b *Buffer) Recent(n int) []Entry {
	entries := b.Entries()
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
