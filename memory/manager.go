package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/easymo/omni-agent-go/vector"
)

// Manager captures turns and serves memory snapshots. The record store
// is the system of record; the vector mirror is best-effort and its
// failures never fail a durable write.
type Manager struct {
	records    RecordStore
	vectors    *vector.Service
	extractors []Extractor
	summarizer Summarizer
	node       *snowflake.Node

	summaryEvery  int
	summaryWindow int
}

// Config wires a Manager. Vectors and Summarizer may be nil; the
// corresponding features are skipped.
type Config struct {
	Records    RecordStore
	Vectors    *vector.Service
	Extractors []Extractor
	Summarizer Summarizer

	// SummaryEvery triggers a summary on every Nth conversation turn.
	// Defaults to 5, summarizing the latest 10 conversation entries.
	SummaryEvery  int
	SummaryWindow int
}

// NewManager validates the config and builds a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Records == nil {
		return nil, fmt.Errorf("memory manager: record store required")
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("memory manager: %w", err)
	}
	extractors := cfg.Extractors
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	summaryEvery := cfg.SummaryEvery
	if summaryEvery <= 0 {
		summaryEvery = 5
	}
	summaryWindow := cfg.SummaryWindow
	if summaryWindow <= 0 {
		summaryWindow = 10
	}
	return &Manager{
		records:       cfg.Records,
		vectors:       cfg.Vectors,
		extractors:    extractors,
		summarizer:    cfg.Summarizer,
		node:          node,
		summaryEvery:  summaryEvery,
		summaryWindow: summaryWindow,
	}, nil
}

// LogTurn records one exchange: a conversation entry always, extracted
// preference and fact entries when the extractors find any, and a
// context entry when the turn carried conversation context.
func (m *Manager) LogTurn(ctx context.Context, ownerID string, turn Turn) error {
	if ownerID == "" {
		return fmt.Errorf("log turn: owner required")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	conv := Entry{
		Kind:       KindConversation,
		Content:    fmt.Sprintf("User: %s\nAgent: %s", turn.UserMessage, turn.AgentReply),
		Importance: importanceConversation,
		Confidence: 1,
		Metadata: map[string]string{
			"domain": turn.Domain,
			"intent": turn.Intent,
		},
	}
	if len(turn.ToolsUsed) > 0 {
		conv.Metadata["tools"] = strings.Join(turn.ToolsUsed, ",")
	}

	entries := []Entry{conv}
	for _, extractor := range m.extractors {
		entries = append(entries, extractor.Extract(turn)...)
	}
	if len(turn.Context) > 0 {
		pairs := make([]string, 0, len(turn.Context))
		for k, v := range turn.Context {
			pairs = append(pairs, k+"="+v)
		}
		sort.Strings(pairs)
		entries = append(entries, Entry{
			Kind:       KindContext,
			Content:    "Conversation context: " + strings.Join(pairs, ", "),
			Importance: importanceContext,
			Confidence: 0.6,
		})
	}

	for i := range entries {
		entries[i].ID = m.node.Generate().String()
		entries[i].OwnerID = ownerID
		entries[i].ConversationID = turn.ConversationID
		entries[i].CreatedAt = turn.Timestamp
		if err := entries[i].Validate(); err != nil {
			return err
		}
		if err := m.records.Append(ctx, entries[i]); err != nil {
			return fmt.Errorf("log turn: %w", err)
		}
	}

	// Only the conversation entry is mirrored for semantic recall.
	// Preferences and facts are retrieved structurally, not by
	// similarity, so keeping them out of the index avoids noise.
	if m.vectors != nil {
		namespace := vector.OwnerNamespace(ownerID)
		err := m.vectors.StoreText(ctx, namespace, entries[0].ID, entries[0].Content, vector.Metadata{
			OwnerID:    ownerID,
			Domain:     turn.Domain,
			Timestamp:  turn.Timestamp,
			Importance: entries[0].Importance,
		})
		if err != nil {
			log.Printf("[MEMORY] Vector mirror failed for owner=%s: %v", ownerID, err)
		}
	}

	m.maybeSummarize(ctx, ownerID, turn.ConversationID)
	return nil
}

// maybeSummarize writes a summary entry on every Nth conversation turn.
// The cadence counts turns of one conversation, not the owner's whole
// history. Failures store a sentinel so the cadence keeps advancing.
func (m *Manager) maybeSummarize(ctx context.Context, ownerID, conversationID string) {
	if m.summarizer == nil {
		return
	}
	turns, err := m.conversationTurns(ctx, ownerID, conversationID)
	if err != nil {
		log.Printf("[MEMORY] Summary check failed for owner=%s: %v", ownerID, err)
		return
	}
	if turns == 0 || turns%m.summaryEvery != 0 {
		return
	}

	recent, err := m.records.Query(ctx, ownerID, RecordQuery{
		Kinds:          []Kind{KindConversation},
		ConversationID: conversationID,
		Limit:          m.summaryWindow,
	})
	if err != nil {
		log.Printf("[MEMORY] Summary window query failed for owner=%s: %v", ownerID, err)
		return
	}
	// Oldest first reads better for the model.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	summary, err := m.summarizer.Summarize(ctx, recent)
	if err != nil {
		log.Printf("[MEMORY] Summarization failed for owner=%s: %v", ownerID, err)
		summary = SummaryFailedSentinel
	}

	entry := Entry{
		ID:             m.node.Generate().String(),
		OwnerID:        ownerID,
		ConversationID: conversationID,
		Kind:           KindSummary,
		Content:        summary,
		Importance:     importanceSummary,
		Confidence:     0.8,
		CreatedAt:      time.Now(),
	}
	if err := m.records.Append(ctx, entry); err != nil {
		log.Printf("[MEMORY] Summary persist failed for owner=%s: %v", ownerID, err)
	}
}

// conversationTurns counts the conversation entries in scope for the
// summary cadence. Without a conversation id the owner's whole history
// is the conversation.
func (m *Manager) conversationTurns(ctx context.Context, ownerID, conversationID string) (int, error) {
	if conversationID == "" {
		stats, err := m.records.Stats(ctx, ownerID)
		if err != nil {
			return 0, err
		}
		return stats.ByKind[KindConversation], nil
	}
	entries, err := m.records.Query(ctx, ownerID, RecordQuery{
		Kinds:          []Kind{KindConversation},
		ConversationID: conversationID,
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// RetrieveContext assembles the memory snapshot for a query. The five
// sub-queries run concurrently and degrade independently: a failure
// logs and leaves that section empty. A zero limit is a real bound:
// that section is skipped, not defaulted.
func (m *Manager) RetrieveContext(ctx context.Context, ownerID, query string, opts RetrieveOptions) *Snapshot {
	if opts.RecentLimit <= 0 && opts.SemanticLimit <= 0 && opts.PreferenceLimit <= 0 && opts.FactLimit <= 0 {
		opts = DefaultRetrieveOptions()
	}

	snap := &Snapshot{}
	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		if opts.RecentLimit <= 0 {
			return
		}
		recent, err := m.records.Query(ctx, ownerID, RecordQuery{
			Kinds: []Kind{KindConversation},
			Limit: opts.RecentLimit,
		})
		if err != nil {
			log.Printf("[MEMORY] Recent query failed for owner=%s: %v", ownerID, err)
			return
		}
		snap.Recent = recent
	}()

	go func() {
		defer wg.Done()
		if m.vectors == nil || query == "" || opts.SemanticLimit <= 0 {
			return
		}
		matches, err := m.vectors.Search(ctx, vector.OwnerNamespace(ownerID), query, vector.Query{
			TopK:     opts.SemanticLimit,
			MinScore: opts.MinScore,
		})
		if err != nil {
			log.Printf("[MEMORY] Semantic query failed for owner=%s: %v", ownerID, err)
			return
		}
		snap.Semantic = matches
	}()

	go func() {
		defer wg.Done()
		if opts.PreferenceLimit <= 0 {
			return
		}
		prefs, err := m.records.Query(ctx, ownerID, RecordQuery{
			Kinds: []Kind{KindPreference},
			Limit: opts.PreferenceLimit * 4,
		})
		if err != nil {
			log.Printf("[MEMORY] Preference query failed for owner=%s: %v", ownerID, err)
			return
		}
		sort.SliceStable(prefs, func(i, j int) bool {
			return prefs[i].Importance > prefs[j].Importance
		})
		if len(prefs) > opts.PreferenceLimit {
			prefs = prefs[:opts.PreferenceLimit]
		}
		snap.Preferences = prefs
	}()

	go func() {
		defer wg.Done()
		if opts.FactLimit <= 0 {
			return
		}
		facts, err := m.records.Query(ctx, ownerID, RecordQuery{
			Kinds: []Kind{KindFact},
			Limit: opts.FactLimit * 4,
		})
		if err != nil {
			log.Printf("[MEMORY] Fact query failed for owner=%s: %v", ownerID, err)
			return
		}
		sort.SliceStable(facts, func(i, j int) bool {
			return facts[i].Confidence > facts[j].Confidence
		})
		if len(facts) > opts.FactLimit {
			facts = facts[:opts.FactLimit]
		}
		snap.Facts = facts
	}()

	go func() {
		defer wg.Done()
		summaries, err := m.records.Query(ctx, ownerID, RecordQuery{
			Kinds: []Kind{KindSummary},
			Limit: 1,
		})
		if err != nil {
			log.Printf("[MEMORY] Summary query failed for owner=%s: %v", ownerID, err)
			return
		}
		if len(summaries) > 0 {
			snap.Summary = summaries[0].Content
		}
	}()

	wg.Wait()
	return snap
}

// Prune deletes an owner's entries matching the kind and age filters.
// Only the record store is touched; the vector mirror is cleaned up on
// full erasure, matching how conversation recall degrades gracefully
// when the index holds a little extra history.
func (m *Manager) Prune(ctx context.Context, ownerID string, kinds []Kind, olderThan time.Time) (int, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("prune: owner required")
	}
	deleted, err := m.records.Delete(ctx, ownerID, kinds, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return deleted, nil
}

// ClearMemories erases everything stored for an owner, in both the
// record store and the vector index.
func (m *Manager) ClearMemories(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("clear memories: owner required")
	}
	if _, err := m.records.Delete(ctx, ownerID, nil, time.Time{}); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	if m.vectors != nil {
		if err := m.vectors.DeleteNamespace(ctx, vector.OwnerNamespace(ownerID)); err != nil {
			return fmt.Errorf("clear memories: vector index: %w", err)
		}
	}
	return nil
}

// Statistics reports stored-entry counts for an owner.
func (m *Manager) Statistics(ctx context.Context, ownerID string) (Statistics, error) {
	return m.records.Stats(ctx, ownerID)
}
