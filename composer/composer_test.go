package composer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easymo/omni-agent-go/composer"
	"github.com/easymo/omni-agent-go/knowledge"
	"github.com/easymo/omni-agent-go/memory"
	"github.com/easymo/omni-agent-go/vector"
	"github.com/easymo/omni-agent-go/vector/chromem"
	"github.com/easymo/omni-agent-go/vector/embedder/mock"
)

// listStore is a minimal in-memory RecordStore.
type listStore struct {
	mu      sync.Mutex
	entries []memory.Entry
}

func (s *listStore) Append(ctx context.Context, entry memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *listStore) Query(ctx context.Context, ownerID string, q memory.RecordQuery) ([]memory.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make(map[memory.Kind]bool, len(q.Kinds))
	for _, kind := range q.Kinds {
		kinds[kind] = true
	}
	var out []memory.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if entry.OwnerID != ownerID || (len(kinds) > 0 && !kinds[entry.Kind]) {
			continue
		}
		out = append(out, entry)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *listStore) Delete(ctx context.Context, ownerID string, kinds []memory.Kind, olderThan time.Time) (int, error) {
	return 0, nil
}

func (s *listStore) Stats(ctx context.Context, ownerID string) (memory.Statistics, error) {
	return memory.Statistics{ByKind: map[memory.Kind]int{}}, nil
}

// brokenStore fails every vector query.
type brokenStore struct{}

func (brokenStore) Store(ctx context.Context, namespace string, rec vector.Record) error { return nil }
func (brokenStore) BulkStore(ctx context.Context, namespace string, recs []vector.Record) error {
	return nil
}
func (brokenStore) Query(ctx context.Context, namespace string, embedding []float32, q vector.Query) ([]vector.Match, error) {
	return nil, errors.New("vector service down")
}
func (brokenStore) Update(ctx context.Context, namespace string, rec vector.Record) error { return nil }
func (brokenStore) Delete(ctx context.Context, namespace, id string) error                { return nil }
func (brokenStore) DeleteNamespace(ctx context.Context, namespace string) error           { return nil }
func (brokenStore) Count(ctx context.Context, namespace string) (int, error)              { return 0, nil }

func seedMemories(t *testing.T, store *listStore) *memory.Manager {
	t.Helper()
	mgr, err := memory.NewManager(memory.Config{Records: store})
	require.NoError(t, err)

	now := time.Now()
	entries := []memory.Entry{
		{ID: "p1", OwnerID: "u1", Kind: memory.KindPreference, Content: "Preferred language: kinyarwanda", Importance: 0.9, CreatedAt: now},
		{ID: "f1", OwnerID: "u1", Kind: memory.KindFact, Content: "Name: Aline", Importance: 0.8, Confidence: 0.9, CreatedAt: now},
		{ID: "s1", OwnerID: "u1", Kind: memory.KindSummary, Content: "Asked about rides twice.", Importance: 0.8, CreatedAt: now},
		{ID: "c1", OwnerID: "u1", Kind: memory.KindConversation, Content: "User: hi / Agent: hello", Importance: 0.7, CreatedAt: now},
	}
	for _, entry := range entries {
		require.NoError(t, store.Append(context.Background(), entry))
	}
	return mgr
}

func TestComposePriorityOrder(t *testing.T) {
	store := &listStore{}
	mgr := seedMemories(t, store)

	vectors := vector.NewService(chromem.New(), mock.New())
	corpus := knowledge.NewCorpus(vectors)
	require.NoError(t, corpus.Ingest(context.Background(), []knowledge.Document{
		{ID: "d1", Title: "Moto guide", Content: "how to book a ride", Domain: "moto"},
	}))

	comp, err := composer.New(composer.Config{Memories: mgr, Docs: corpus})
	require.NoError(t, err)
	defer comp.Close()

	// The deterministic embedder scores the exact indexed text ~1.0.
	res := comp.Compose(context.Background(), "u1", "Moto guide\nhow to book a ride", "moto")

	text := res.Text
	prefIdx := strings.Index(text, "USER PREFERENCES")
	factIdx := strings.Index(text, "KNOWN FACTS")
	sumIdx := strings.Index(text, "CONVERSATION SUMMARY")
	recentIdx := strings.Index(text, "RECENT CONVERSATION")
	docIdx := strings.Index(text, "RELEVANT DOCUMENTS")

	require.GreaterOrEqual(t, prefIdx, 0)
	require.Greater(t, factIdx, prefIdx)
	require.Greater(t, sumIdx, factIdx)
	require.Greater(t, recentIdx, sumIdx)
	require.Greater(t, docIdx, recentIdx)
	assert.Contains(t, text, "---")

	assert.Equal(t, 1, res.Sources.Preferences)
	assert.Equal(t, 1, res.Sources.Facts)
	assert.True(t, res.Sources.Summary)
	assert.Equal(t, 1, res.Sources.Documents)
	assert.Empty(t, res.Degraded)
}

func TestComposeDocumentOutageDegradesOnlyDocuments(t *testing.T) {
	store := &listStore{}
	mgr := seedMemories(t, store)

	corpus := knowledge.NewCorpus(vector.NewService(brokenStore{}, mock.New()))
	comp, err := composer.New(composer.Config{Memories: mgr, Docs: corpus})
	require.NoError(t, err)
	defer comp.Close()

	res := comp.Compose(context.Background(), "u1", "anything", "")

	assert.Contains(t, res.Degraded, "documents")
	assert.Contains(t, res.Text, "USER PREFERENCES", "memory sections survive a document outage")
	assert.Equal(t, 0, res.Sources.Documents)
}

func TestComposeCachesByOwnerAndQuery(t *testing.T) {
	store := &listStore{}
	mgr := seedMemories(t, store)

	comp, err := composer.New(composer.Config{Memories: mgr})
	require.NoError(t, err)
	defer comp.Close()

	first := comp.Compose(context.Background(), "u1", "hello", "")
	require.False(t, first.Cached)
	comp.Wait()

	second := comp.Compose(context.Background(), "u1", "hello", "")
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)

	other := comp.Compose(context.Background(), "u2", "hello", "")
	assert.False(t, other.Cached)
}
