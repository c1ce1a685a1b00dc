// Package composer assembles the enhanced context block injected into
// the model prompt: personal memory and shared documents, merged in a
// fixed priority order.
package composer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/easymo/omni-agent-go/knowledge"
	"github.com/easymo/omni-agent-go/memory"
	"github.com/easymo/omni-agent-go/vector"
)

// Result is one composed context block.
type Result struct {
	Text     string
	Sources  SourceCounts
	Degraded []string
	Cached   bool
}

// SourceCounts reports how many items each section contributed.
type SourceCounts struct {
	Recent      int
	Semantic    int
	Preferences int
	Facts       int
	Documents   int
	Summary     bool
}

// Composer merges memory retrieval and document retrieval. Compose
// never fails: a broken source is reported in Degraded and its section
// is left out, so one outage cannot empty the whole context.
type Composer struct {
	memories *memory.Manager
	docs     *knowledge.Corpus
	cache    *ristretto.Cache
	ttl      time.Duration

	docTopK     int
	docMinScore float32
}

// Config wires a Composer. Docs may be nil when no corpus is loaded.
type Config struct {
	Memories *memory.Manager
	Docs     *knowledge.Corpus

	// CacheTTL bounds how long a composed block is reused for the same
	// owner and query prefix. Defaults to 5 minutes.
	CacheTTL    time.Duration
	CacheSize   int64
	DocTopK     int
	DocMinScore float32
}

const cacheKeyLen = 100

// New builds a composer with a bounded TTL cache.
func New(cfg Config) (*Composer, error) {
	if cfg.Memories == nil {
		return nil, fmt.Errorf("composer: memory manager required")
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("composer cache: %w", err)
	}
	docTopK := cfg.DocTopK
	if docTopK <= 0 {
		docTopK = 3
	}
	docMinScore := cfg.DocMinScore
	if docMinScore <= 0 {
		docMinScore = 0.7
	}
	return &Composer{
		memories:    cfg.Memories,
		docs:        cfg.Docs,
		cache:       cache,
		ttl:         ttl,
		docTopK:     docTopK,
		docMinScore: docMinScore,
	}, nil
}

// Wait blocks until buffered cache writes are applied.
func (c *Composer) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *Composer) Close() {
	c.cache.Close()
}

// Compose builds the context block for one query.
func (c *Composer) Compose(ctx context.Context, ownerID, query, domain string) *Result {
	key := cacheKey(ownerID, query)
	if cached, ok := c.cache.Get(key); ok {
		if res, ok := cached.(*Result); ok {
			copied := *res
			copied.Cached = true
			return &copied
		}
	}

	var (
		wg      sync.WaitGroup
		snap    *memory.Snapshot
		matches []vector.Match
		docErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap = c.memories.RetrieveContext(ctx, ownerID, query, memory.DefaultRetrieveOptions())
	}()
	go func() {
		defer wg.Done()
		if c.docs == nil {
			return
		}
		matches, docErr = c.docs.Search(ctx, query, domain, c.docTopK, c.docMinScore)
	}()
	wg.Wait()

	res := c.merge(snap, matches)
	if docErr != nil {
		log.Printf("[COMPOSER] Document retrieval degraded for owner=%s: %v", ownerID, docErr)
		res.Degraded = append(res.Degraded, "documents")
	}

	c.cache.SetWithTTL(key, res, 1, c.ttl)
	return res
}

// Invalidate drops the cached block for one owner and query.
func (c *Composer) Invalidate(ownerID, query string) {
	c.cache.Del(cacheKey(ownerID, query))
}

// merge writes sections in fixed priority order: preferences, facts,
// summary, recent turns, semantic memories, documents.
func (c *Composer) merge(snap *memory.Snapshot, docs []vector.Match) *Result {
	res := &Result{}
	var b strings.Builder

	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(title)
		b.WriteString(":\n")
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	section("USER PREFERENCES", entryLines(snap.Preferences))
	res.Sources.Preferences = len(snap.Preferences)

	section("KNOWN FACTS", entryLines(snap.Facts))
	res.Sources.Facts = len(snap.Facts)

	if snap.Summary != "" {
		section("CONVERSATION SUMMARY", []string{snap.Summary})
		res.Sources.Summary = true
	}

	section("RECENT CONVERSATION", entryLines(snap.Recent))
	res.Sources.Recent = len(snap.Recent)

	section("RELEVANT MEMORIES", matchLines(snap.Semantic))
	res.Sources.Semantic = len(snap.Semantic)

	section("RELEVANT DOCUMENTS", matchLines(docs))
	res.Sources.Documents = len(docs)

	res.Text = b.String()
	return res
}

func entryLines(entries []memory.Entry) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, strings.ReplaceAll(entry.Content, "\n", " / "))
	}
	return lines
}

func matchLines(matches []vector.Match) []string {
	lines := make([]string, 0, len(matches))
	for _, match := range matches {
		lines = append(lines, strings.ReplaceAll(match.Meta.Content, "\n", " / "))
	}
	return lines
}

func cacheKey(ownerID, query string) string {
	if len(query) > cacheKeyLen {
		query = query[:cacheKeyLen]
	}
	return ownerID + "|" + query
}
