package audit_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easymo/omni-agent-go/audit"
)

func TestMemoryLogKeepsMostRecent(t *testing.T) {
	log := audit.NewMemoryLog(3)

	for i := 0; i < 5; i++ {
		log.Record(context.Background(), &audit.Entry{
			ID:       fmt.Sprintf("e%d", i),
			OwnerID:  "u1",
			ToolName: "get_payment_qr",
			Success:  true,
		})
	}

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, "e4", entries[2].ID)
}

func TestSQLiteLogRecords(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	log, err := audit.NewSQLiteLogFromDB(db)
	require.NoError(t, err)

	log.Record(context.Background(), &audit.Entry{
		ID:         "e1",
		OwnerID:    "u1",
		SessionID:  "s1",
		ToolName:   "create_payment_qr",
		Input:      []byte(`{"amount":5000}`),
		Output:     []byte(`{"qr":"..."}`),
		Success:    true,
		DurationMs: 42,
		Timestamp:  time.Now(),
	})
	log.Record(context.Background(), &audit.Entry{
		ID:        "e2",
		OwnerID:   "u1",
		ToolName:  "create_payment_qr",
		Error:     "create_payment_qr: remote_error: backend said no",
		Success:   false,
		Timestamp: time.Now(),
	})

	var total, failures int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tool_executions WHERE owner_id = ?`, "u1").Scan(&total))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tool_executions WHERE success = 0`).Scan(&failures))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failures)

	var gotInput string
	require.NoError(t, db.QueryRow(`SELECT input FROM tool_executions WHERE id = ?`, "e1").Scan(&gotInput))
	assert.JSONEq(t, `{"amount":5000}`, gotInput)
}
