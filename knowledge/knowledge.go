// Package knowledge maintains the shared document corpus used for
// retrieval-augmented answers. Documents live in the shared vector
// namespace and are visible to every user.
package knowledge

import (
	"context"
	"fmt"
	"log"

	"github.com/easymo/omni-agent-go/vector"
)

// Document is one corpus entry.
type Document struct {
	ID      string
	Title   string
	Content string
	Domain  string
}

// Corpus indexes and searches documents.
type Corpus struct {
	vectors *vector.Service
}

// NewCorpus wraps the vector service for document retrieval.
func NewCorpus(vectors *vector.Service) *Corpus {
	return &Corpus{vectors: vectors}
}

// Ingest indexes documents into the shared namespace. Existing IDs are
// overwritten, so re-ingesting an updated corpus is safe.
func (c *Corpus) Ingest(ctx context.Context, docs []Document) error {
	recs := make([]vector.Record, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" || doc.Content == "" {
			return fmt.Errorf("ingest: document needs id and content")
		}
		recs = append(recs, vector.Record{
			ID: doc.ID,
			Meta: vector.Metadata{
				Content: doc.Title + "\n" + doc.Content,
				Domain:  doc.Domain,
			},
		})
	}
	if err := c.vectors.BulkStoreTexts(ctx, vector.SharedNamespace, recs); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	log.Printf("[KNOWLEDGE] Indexed %d documents", len(recs))
	return nil
}

// Search runs a similarity query over the corpus. domain narrows the
// search when non-empty.
func (c *Corpus) Search(ctx context.Context, query, domain string, topK int, minScore float32) ([]vector.Match, error) {
	q := vector.Query{TopK: topK, MinScore: minScore}
	if domain != "" {
		q.Filter = map[string]string{"domain": domain}
	}
	return c.vectors.Search(ctx, vector.SharedNamespace, query, q)
}

// DefaultDocuments is the built-in easyMO help corpus.
func DefaultDocuments() []Document {
	return []Document{
		{
			ID:     "doc-payments-qr",
			Title:  "Receiving money with QR codes",
			Domain: "payments",
			Content: "To get paid, ask for a payment QR code with the amount. " +
				"Share the QR image or the USSD code with the payer. Mobile money " +
				"transfers settle within minutes and you can check status any time.",
		},
		{
			ID:     "doc-payments-fees",
			Title:  "Payment fees and limits",
			Domain: "payments",
			Content: "Mobile money transfers up to 2,000,000 RWF per day are supported. " +
				"Standard network fees apply per the operator's tariff. There is no " +
				"extra platform fee for receiving payments.",
		},
		{
			ID:     "doc-moto-rides",
			Title:  "Booking moto rides",
			Domain: "moto",
			Content: "Passengers can request a ride by sharing a pickup location and " +
				"destination. Nearby drivers are matched within a 5 km radius. Drivers " +
				"go online by publishing a trip with their current position.",
		},
		{
			ID:     "doc-listings",
			Title:  "Property and vehicle listings",
			Domain: "listings",
			Content: "Anyone can publish a property or vehicle listing with a title and " +
				"price. Listings are searchable by type, price range, and location. " +
				"Contact details are shared only after both sides agree.",
		},
		{
			ID:     "doc-commerce-orders",
			Title:  "Ordering from pharmacies, hardware shops, and bars",
			Domain: "commerce",
			Content: "Browse a business's menu by its code, then place an order with " +
				"the items you want. Delivery address is optional for in-person pickup. " +
				"Bars support table codes for ordering from your seat.",
		},
		{
			ID:     "doc-support",
			Title:  "Getting help",
			Domain: "admin_support",
			Content: "Ask for help at any time to reach a human agent. Support tickets " +
				"are logged and followed up within one business day. Urgent payment " +
				"issues are escalated immediately.",
		},
	}
}
