// Package memory implements turn-based conversation memory: every turn
// is captured as structured entries, durable in a record store and
// mirrored into the vector store for semantic recall.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/easymo/omni-agent-go/vector"
)

// Kind classifies a memory entry.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindPreference   Kind = "preference"
	KindContext      Kind = "context"
	KindSummary      Kind = "summary"
	KindFact         Kind = "fact"
)

// ValidKinds lists every accepted entry kind.
func ValidKinds() []Kind {
	return []Kind{KindConversation, KindPreference, KindContext, KindSummary, KindFact}
}

// Entry is one persisted memory. ConversationID groups entries from the
// same conversation; Entities is the ordered list of things the entry is
// about; a zero ExpiresAt means the entry never expires.
type Entry struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"owner_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Kind           Kind              `json:"kind"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Entities       []string          `json:"entities,omitempty"`
	Importance     float64           `json:"importance"`
	Confidence     float64           `json:"confidence"`
	CreatedAt      time.Time         `json:"created_at"`
	ExpiresAt      time.Time         `json:"expires_at,omitempty"`
}

// Validate enforces the entry invariants before persistence.
func (e *Entry) Validate() error {
	if e.OwnerID == "" {
		return fmt.Errorf("memory entry: owner required")
	}
	if e.Content == "" {
		return fmt.Errorf("memory entry: content required")
	}
	switch e.Kind {
	case KindConversation, KindPreference, KindContext, KindSummary, KindFact:
	default:
		return fmt.Errorf("memory entry: unknown kind %q", e.Kind)
	}
	if e.Importance < 0 || e.Importance > 1 {
		return fmt.Errorf("memory entry: importance %f out of range", e.Importance)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("memory entry: confidence %f out of range", e.Confidence)
	}
	return nil
}

// Expired reports whether the entry's retention window has passed.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(now)
}

// Turn is one completed user/agent exchange. ConversationID ties the
// turn to a session; TurnNumber is its 1-based position in it.
type Turn struct {
	ConversationID string
	TurnNumber     int
	UserMessage    string
	AgentReply     string
	Domain         string
	Intent         string
	ToolsUsed      []string
	Context        map[string]string
	Timestamp      time.Time
}

// Snapshot is the memory bundle retrieved for one query. Each section
// degrades independently: a failed sub-query leaves its section empty
// without voiding the others.
type Snapshot struct {
	Recent      []Entry
	Semantic    []vector.Match
	Preferences []Entry
	Facts       []Entry
	Summary     string
}

// RetrieveOptions bounds each Snapshot section.
type RetrieveOptions struct {
	RecentLimit     int
	SemanticLimit   int
	PreferenceLimit int
	FactLimit       int
	MinScore        float32
}

// DefaultRetrieveOptions matches production retrieval bounds.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{
		RecentLimit:     10,
		SemanticLimit:   5,
		PreferenceLimit: 5,
		FactLimit:       5,
		MinScore:        0.7,
	}
}

// Statistics summarizes one owner's stored memory.
type Statistics struct {
	Total    int
	ByKind   map[Kind]int
	OldestAt time.Time
	NewestAt time.Time
}

// RecordQuery shapes a record store read. A non-empty ConversationID
// narrows the read to that conversation's entries.
type RecordQuery struct {
	Kinds          []Kind
	ConversationID string
	Limit          int
}

// RecordStore is the durable system of record for memory entries.
// Query returns entries newest first and never returns expired ones.
type RecordStore interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, ownerID string, q RecordQuery) ([]Entry, error)
	Delete(ctx context.Context, ownerID string, kinds []Kind, olderThan time.Time) (int, error)
	Stats(ctx context.Context, ownerID string) (Statistics, error)
}
