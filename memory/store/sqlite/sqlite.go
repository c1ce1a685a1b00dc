// Package sqlite is the durable record store for memory entries.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/easymo/omni-agent-go/memory"
)

// Store persists memory entries in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL,
	content         TEXT NOT NULL,
	metadata        TEXT,
	tags            TEXT,
	entities        TEXT,
	importance      REAL NOT NULL DEFAULT 0,
	confidence      REAL NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	expires_at      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_memories_owner_kind_time
	ON memories(owner_id, kind, created_at DESC);
`

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	return NewFromDB(db)
}

// NewFromDB applies the schema to an existing connection.
func NewFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init memory schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one entry.
func (s *Store) Append(ctx context.Context, entry memory.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	metadata, err := marshalJSON(entry.Metadata, len(entry.Metadata) > 0)
	if err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	tags, err := marshalJSON(entry.Tags, len(entry.Tags) > 0)
	if err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	entities, err := marshalJSON(entry.Entities, len(entry.Entities) > 0)
	if err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	var expiresAt int64
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.UnixNano()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, owner_id, conversation_id, kind, content, metadata, tags, entities, importance, confidence, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OwnerID, entry.ConversationID, string(entry.Kind), entry.Content,
		nullable(metadata), nullable(tags), nullable(entities),
		entry.Importance, entry.Confidence, entry.CreatedAt.UnixNano(), expiresAt)
	if err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	return nil
}

// Query reads an owner's entries, newest first. Expired entries are
// never returned.
func (s *Store) Query(ctx context.Context, ownerID string, q memory.RecordQuery) ([]memory.Entry, error) {
	where := []string{"owner_id = ?"}
	args := []interface{}{ownerID}
	if len(q.Kinds) > 0 {
		placeholders := make([]string, len(q.Kinds))
		for i, kind := range q.Kinds {
			placeholders[i] = "?"
			args = append(args, string(kind))
		}
		where = append(where, "kind IN ("+strings.Join(placeholders, ",")+")")
	}
	if q.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, q.ConversationID)
	}
	where = append(where, "(expires_at = 0 OR expires_at > ?)")
	args = append(args, time.Now().UnixNano())

	query := `SELECT id, owner_id, conversation_id, kind, content, metadata, tags, entities, importance, confidence, created_at, expires_at
		FROM memories WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var entries []memory.Entry
	for rows.Next() {
		var entry memory.Entry
		var kind string
		var metadata, tags, entities sql.NullString
		var createdAt, expiresAt int64
		if err := rows.Scan(&entry.ID, &entry.OwnerID, &entry.ConversationID, &kind, &entry.Content,
			&metadata, &tags, &entities, &entry.Importance, &entry.Confidence, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		entry.Kind = memory.Kind(kind)
		entry.CreatedAt = time.Unix(0, createdAt)
		if expiresAt != 0 {
			entry.ExpiresAt = time.Unix(0, expiresAt)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("scan memory metadata: %w", err)
			}
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &entry.Tags); err != nil {
				return nil, fmt.Errorf("scan memory tags: %w", err)
			}
		}
		if entities.Valid && entities.String != "" {
			if err := json.Unmarshal([]byte(entities.String), &entry.Entities); err != nil {
				return nil, fmt.Errorf("scan memory entities: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes entries for an owner. A nil kinds slice means all
// kinds; a zero olderThan means no age cutoff.
func (s *Store) Delete(ctx context.Context, ownerID string, kinds []memory.Kind, olderThan time.Time) (int, error) {
	where := []string{"owner_id = ?"}
	args := []interface{}{ownerID}
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, kind := range kinds {
			placeholders[i] = "?"
			args = append(args, string(kind))
		}
		where = append(where, "kind IN ("+strings.Join(placeholders, ",")+")")
	}
	if !olderThan.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, olderThan.UnixNano())
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM memories WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// Stats reports per-kind counts and the entry time range for an owner.
func (s *Store) Stats(ctx context.Context, ownerID string) (memory.Statistics, error) {
	stats := memory.Statistics{ByKind: make(map[memory.Kind]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*), MIN(created_at), MAX(created_at)
		 FROM memories WHERE owner_id = ? GROUP BY kind`, ownerID)
	if err != nil {
		return stats, fmt.Errorf("memory stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		var oldestNanos, newestNanos int64
		if err := rows.Scan(&kind, &count, &oldestNanos, &newestNanos); err != nil {
			return stats, fmt.Errorf("scan memory stats: %w", err)
		}
		stats.ByKind[memory.Kind(kind)] = count
		stats.Total += count
		oldest, newest := time.Unix(0, oldestNanos), time.Unix(0, newestNanos)
		if stats.OldestAt.IsZero() || oldest.Before(stats.OldestAt) {
			stats.OldestAt = oldest
		}
		if newest.After(stats.NewestAt) {
			stats.NewestAt = newest
		}
	}
	return stats, rows.Err()
}

func nullable(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func marshalJSON(v interface{}, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}
