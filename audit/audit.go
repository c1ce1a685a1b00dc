// Package audit records tool executions for analytics and traceability.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Entry is one recorded tool execution.
type Entry struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	SessionID  string          `json:"session_id,omitempty"`
	ToolName   string          `json:"tool_name"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Success    bool            `json:"success"`
	DurationMs int64           `json:"duration_ms"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Logger persists execution entries. Implementations must be safe for
// concurrent use; Record failures are the implementation's problem to
// report (logging is never allowed to fail a tool call).
type Logger interface {
	Record(ctx context.Context, entry *Entry)
}

// MemoryLog keeps the most recent entries in memory. Used in tests and as
// the default when no durable logger is configured.
type MemoryLog struct {
	mu      sync.Mutex
	entries []*Entry
	max     int
}

// NewMemoryLog creates a bounded in-memory log. max <= 0 defaults to 100.
func NewMemoryLog(max int) *MemoryLog {
	if max <= 0 {
		max = 100
	}
	return &MemoryLog{max: max}
}

func (l *MemoryLog) Record(ctx context.Context, entry *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// Entries returns a snapshot of the recorded entries, oldest first.
func (l *MemoryLog) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
