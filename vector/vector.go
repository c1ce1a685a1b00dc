// Package vector wraps the vector-similarity service used for semantic
// retrieval. Records are namespaced by owner so one user's memories can
// never surface in another's queries.
package vector

import (
	"context"
	"fmt"
	"time"
)

// Metadata travels with every vector record.
type Metadata struct {
	Content    string
	OwnerID    string
	Domain     string
	Timestamp  time.Time
	Importance float64
}

// Record is one stored vector.
type Record struct {
	ID        string
	Embedding []float32
	Meta      Metadata
}

// Match is one scored query result.
type Match struct {
	ID    string
	Score float32
	Meta  Metadata
}

// Query shapes a similarity search. Matches scoring below MinScore are
// dropped before they reach the caller; the threshold is a correctness
// guarantee, not a hint.
type Query struct {
	Filter   map[string]string
	TopK     int
	MinScore float32
}

// Store is the vector storage backend.
type Store interface {
	Store(ctx context.Context, namespace string, rec Record) error
	BulkStore(ctx context.Context, namespace string, recs []Record) error
	Query(ctx context.Context, namespace string, embedding []float32, q Query) ([]Match, error)
	Update(ctx context.Context, namespace string, rec Record) error
	Delete(ctx context.Context, namespace string, id string) error
	DeleteNamespace(ctx context.Context, namespace string) error
	Count(ctx context.Context, namespace string) (int, error)
}

// Embedder converts text to embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Service combines an embedder and a store so callers work in text.
type Service struct {
	store    Store
	embedder Embedder
}

// NewService wires a store to an embedder.
func NewService(store Store, embedder Embedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// Store exposes the underlying backend for vector-level operations.
func (s *Service) Store() Store {
	return s.store
}

// StoreText embeds content and stores it under the namespace.
func (s *Service) StoreText(ctx context.Context, namespace, id, content string, meta Metadata) error {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed %s: %w", id, err)
	}
	meta.Content = content
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	return s.store.Store(ctx, namespace, Record{ID: id, Embedding: embedding, Meta: meta})
}

// BulkStoreTexts embeds and stores several texts in one call.
func (s *Service) BulkStoreTexts(ctx context.Context, namespace string, items []Record) error {
	recs := make([]Record, 0, len(items))
	for _, item := range items {
		embedding, err := s.embedder.Embed(ctx, item.Meta.Content)
		if err != nil {
			return fmt.Errorf("embed %s: %w", item.ID, err)
		}
		item.Embedding = embedding
		if item.Meta.Timestamp.IsZero() {
			item.Meta.Timestamp = time.Now()
		}
		recs = append(recs, item)
	}
	return s.store.BulkStore(ctx, namespace, recs)
}

// Search embeds the query text and runs a similarity search.
func (s *Service) Search(ctx context.Context, namespace, query string, q Query) ([]Match, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.Query(ctx, namespace, embedding, q)
}

// Delete removes one record from the namespace.
func (s *Service) Delete(ctx context.Context, namespace, id string) error {
	return s.store.Delete(ctx, namespace, id)
}

// DeleteNamespace removes every record for a namespace (account erasure).
func (s *Service) DeleteNamespace(ctx context.Context, namespace string) error {
	return s.store.DeleteNamespace(ctx, namespace)
}

// OwnerNamespace is the canonical namespace for a user's personal memory.
func OwnerNamespace(ownerID string) string {
	if ownerID == "" {
		return "global"
	}
	return "user_" + ownerID
}

// SharedNamespace holds the document corpus available to every user.
const SharedNamespace = "shared"
