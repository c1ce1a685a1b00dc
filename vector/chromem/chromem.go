// Package chromem backs the vector store with chromem-go, a pure Go
// embedded vector database. Each namespace maps to its own collection.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/easymo/omni-agent-go/vector"
)

// Store implements vector.Store over chromem-go.
type Store struct {
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates an in-memory chromem store.
func New() *Store {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func (s *Store) collection(namespace string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[namespace]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[namespace]; ok {
		return col, nil
	}

	// Embeddings are provided by the caller, so no embedding func here.
	col, err := s.db.CreateCollection(namespace, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", namespace, err)
	}
	s.collections[namespace] = col
	return col, nil
}

// Store upserts one record. chromem replaces documents by ID, so Store
// doubles as Update.
func (s *Store) Store(ctx context.Context, namespace string, rec vector.Record) error {
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, toDocument(rec))
}

// BulkStore upserts several records in one call.
func (s *Store) BulkStore(ctx context.Context, namespace string, recs []vector.Record) error {
	if len(recs) == 0 {
		return nil
	}
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(recs))
	for i, rec := range recs {
		docs[i] = toDocument(rec)
	}
	return col.AddDocuments(ctx, docs, 1)
}

// Update rewrites an existing record.
func (s *Store) Update(ctx context.Context, namespace string, rec vector.Record) error {
	return s.Store(ctx, namespace, rec)
}

// Query runs a similarity search in the namespace. Matches below
// q.MinScore are dropped.
func (s *Store) Query(ctx context.Context, namespace string, embedding []float32, q vector.Query) ([]vector.Match, error) {
	col, err := s.collection(namespace)
	if err != nil {
		return nil, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	if count := col.Count(); count < topK {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	var where map[string]string
	if len(q.Filter) > 0 {
		where = q.Filter
	}

	// chromem rejects nResults larger than the filtered document count,
	// so retry with smaller limits before giving up.
	var results []chromem.Result
	for limit := topK; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]vector.Match, 0, len(results))
	for _, result := range results {
		if result.Similarity < q.MinScore {
			continue
		}
		matches = append(matches, toMatch(result))
	}
	log.Printf("[VECTOR] namespace=%s matched %d of %d results above %.2f",
		namespace, len(matches), len(results), q.MinScore)
	return matches, nil
}

// Delete removes one record by ID.
func (s *Store) Delete(ctx context.Context, namespace, id string) error {
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	return col.Delete(ctx, nil, nil, id)
}

// DeleteNamespace drops the whole collection.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[namespace]; !ok {
		return nil
	}
	if err := s.db.DeleteCollection(namespace); err != nil {
		return fmt.Errorf("delete collection %s: %w", namespace, err)
	}
	delete(s.collections, namespace)
	return nil
}

// Count reports the number of records in a namespace.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	s.mu.RLock()
	col, ok := s.collections[namespace]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return col.Count(), nil
}

func toDocument(rec vector.Record) chromem.Document {
	metadata := map[string]string{
		"owner_id":   rec.Meta.OwnerID,
		"domain":     rec.Meta.Domain,
		"timestamp":  rec.Meta.Timestamp.Format(time.RFC3339),
		"importance": strconv.FormatFloat(rec.Meta.Importance, 'f', 2, 64),
	}
	return chromem.Document{
		ID:        rec.ID,
		Content:   rec.Meta.Content,
		Embedding: rec.Embedding,
		Metadata:  metadata,
	}
}

func toMatch(result chromem.Result) vector.Match {
	timestamp, _ := time.Parse(time.RFC3339, result.Metadata["timestamp"])
	importance, _ := strconv.ParseFloat(result.Metadata["importance"], 64)
	return vector.Match{
		ID:    result.ID,
		Score: result.Similarity,
		Meta: vector.Metadata{
			Content:    result.Content,
			OwnerID:    result.Metadata["owner_id"],
			Domain:     result.Metadata["domain"],
			Timestamp:  timestamp,
			Importance: importance,
		},
	}
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
