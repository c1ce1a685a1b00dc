package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easymo/omni-agent-go/memory"
	"github.com/easymo/omni-agent-go/memory/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entry(id, owner string, kind memory.Kind, content string, at time.Time) memory.Entry {
	return memory.Entry{
		ID:         id,
		OwnerID:    owner,
		Kind:       kind,
		Content:    content,
		Importance: 0.7,
		CreatedAt:  at,
	}
}

func TestAppendAndQueryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		e := entry(fmt.Sprintf("c%d", i), "u1", memory.KindConversation,
			fmt.Sprintf("turn %d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Append(ctx, e))
	}

	got, err := store.Query(ctx, "u1", memory.RecordQuery{Kinds: []memory.Kind{memory.KindConversation}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "turn 2", got[0].Content)
	assert.Equal(t, "turn 1", got[1].Content)
}

func TestMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	e := entry("c1", "u1", memory.KindConversation, "User: hi\nAgent: hello", time.Now())
	e.Metadata = map[string]string{"domain": "payments", "intent": "get_paid"}
	require.NoError(t, store.Append(ctx, e))

	got, err := store.Query(ctx, "u1", memory.RecordQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "payments", got[0].Metadata["domain"])
	assert.Equal(t, "get_paid", got[0].Metadata["intent"])
	assert.WithinDuration(t, e.CreatedAt, got[0].CreatedAt, time.Millisecond)
}

func TestEntryFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	e := entry("f1", "u1", memory.KindFact, "Phone number: 0788123456", time.Now())
	e.ConversationID = "conv-1"
	e.Tags = []string{"fact", "contact"}
	e.Entities = []string{"0788123456"}
	e.ExpiresAt = time.Now().Add(24 * time.Hour)
	require.NoError(t, store.Append(ctx, e))

	got, err := store.Query(ctx, "u1", memory.RecordQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "conv-1", got[0].ConversationID)
	assert.Equal(t, []string{"fact", "contact"}, got[0].Tags)
	assert.Equal(t, []string{"0788123456"}, got[0].Entities)
	assert.WithinDuration(t, e.ExpiresAt, got[0].ExpiresAt, time.Millisecond)
}

func TestQueryFiltersByConversation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now()

	a := entry("c1", "u1", memory.KindConversation, "turn in a", now)
	a.ConversationID = "conv-a"
	b := entry("c2", "u1", memory.KindConversation, "turn in b", now)
	b.ConversationID = "conv-b"
	require.NoError(t, store.Append(ctx, a))
	require.NoError(t, store.Append(ctx, b))

	got, err := store.Query(ctx, "u1", memory.RecordQuery{ConversationID: "conv-a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)

	all, err := store.Query(ctx, "u1", memory.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestQueryExcludesExpiredEntries(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now()

	expired := entry("f1", "u1", memory.KindFact, "stale", now.Add(-2*time.Hour))
	expired.ExpiresAt = now.Add(-time.Hour)
	fresh := entry("f2", "u1", memory.KindFact, "current", now)
	fresh.ExpiresAt = now.Add(time.Hour)
	forever := entry("f3", "u1", memory.KindFact, "permanent", now)
	require.NoError(t, store.Append(ctx, expired))
	require.NoError(t, store.Append(ctx, fresh))
	require.NoError(t, store.Append(ctx, forever))

	got, err := store.Query(ctx, "u1", memory.RecordQuery{Kinds: []memory.Kind{memory.KindFact}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.NotContains(t, ids, "f1")
}

func TestQueryFiltersByKindAndOwner(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now()

	require.NoError(t, store.Append(ctx, entry("p1", "u1", memory.KindPreference, "likes kinyarwanda", now)))
	require.NoError(t, store.Append(ctx, entry("f1", "u1", memory.KindFact, "name is aline", now)))
	require.NoError(t, store.Append(ctx, entry("p2", "u2", memory.KindPreference, "someone else", now)))

	got, err := store.Query(ctx, "u1", memory.RecordQuery{Kinds: []memory.Kind{memory.KindPreference}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestAppendRejectsInvalidEntry(t *testing.T) {
	store := newStore(t)

	err := store.Append(context.Background(), memory.Entry{ID: "x", Kind: memory.KindFact, Content: "no owner"})
	assert.Error(t, err)
}

func TestDeleteByKindAndAge(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now()

	require.NoError(t, store.Append(ctx, entry("c1", "u1", memory.KindConversation, "old", now.Add(-48*time.Hour))))
	require.NoError(t, store.Append(ctx, entry("c2", "u1", memory.KindConversation, "fresh", now)))
	require.NoError(t, store.Append(ctx, entry("p1", "u1", memory.KindPreference, "keep", now.Add(-48*time.Hour))))

	deleted, err := store.Delete(ctx, "u1", []memory.Kind{memory.KindConversation}, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := store.Query(ctx, "u1", memory.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestDeleteAllForOwner(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Now()

	require.NoError(t, store.Append(ctx, entry("c1", "u1", memory.KindConversation, "a", now)))
	require.NoError(t, store.Append(ctx, entry("f1", "u1", memory.KindFact, "b", now)))
	require.NoError(t, store.Append(ctx, entry("c2", "u2", memory.KindConversation, "other owner", now)))

	deleted, err := store.Delete(ctx, "u1", nil, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	other, err := store.Query(ctx, "u2", memory.RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.Append(ctx, entry("c1", "u1", memory.KindConversation, "a", base)))
	require.NoError(t, store.Append(ctx, entry("c2", "u1", memory.KindConversation, "b", base.Add(10*time.Minute))))
	require.NoError(t, store.Append(ctx, entry("f1", "u1", memory.KindFact, "c", base.Add(20*time.Minute))))

	stats, err := store.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByKind[memory.KindConversation])
	assert.Equal(t, 1, stats.ByKind[memory.KindFact])
	assert.WithinDuration(t, base, stats.OldestAt, time.Millisecond)
	assert.WithinDuration(t, base.Add(20*time.Minute), stats.NewestAt, time.Millisecond)
}

func TestStatsEmptyOwner(t *testing.T) {
	store := newStore(t)

	stats, err := store.Stats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.True(t, stats.OldestAt.IsZero())
}
