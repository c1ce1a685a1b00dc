package audit

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLog persists execution entries to a SQLite table. It can share the
// database file used by the memory record store.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog opens (or reuses) dbPath and creates the execution table.
func NewSQLiteLog(dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	l := &SQLiteLog{db: db}
	if err := l.init(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewSQLiteLogFromDB wraps an already open connection.
func NewSQLiteLogFromDB(db *sql.DB) (*SQLiteLog, error) {
	l := &SQLiteLog{db: db}
	if err := l.init(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLog) init() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS tool_executions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		session_id TEXT,
		tool_name TEXT NOT NULL,
		input TEXT,
		output TEXT,
		error TEXT,
		success INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		ts DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tool_executions_owner ON tool_executions(owner_id, ts);`)
	return err
}

func (l *SQLiteLog) Record(ctx context.Context, entry *Entry) {
	success := 0
	if entry.Success {
		success = 1
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tool_executions
		 (id, owner_id, session_id, tool_name, input, output, error, success, duration_ms, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OwnerID, entry.SessionID, entry.ToolName,
		string(entry.Input), string(entry.Output), entry.Error,
		success, entry.DurationMs, entry.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		log.Printf("[AUDIT] Failed to record execution for %s: %v", entry.ToolName, err)
	}
}

// Close releases the database connection.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
