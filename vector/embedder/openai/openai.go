// Package openai embeds text through the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder calls the hosted embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// New creates an embedder using text-embedding-ada-002.
func New(client *openai.Client) *Embedder {
	return &Embedder{
		client:     client,
		model:      openai.AdaEmbeddingV2,
		dimensions: 1536,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("create embedding: empty response")
	}
	return resp.Data[0].Embedding, nil
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}
