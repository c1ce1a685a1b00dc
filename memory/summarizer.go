package memory

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// SummaryFailedSentinel is stored when summarization fails so the turn
// counter still advances and retrieval has something to show.
const SummaryFailedSentinel = "Summary unavailable for this period."

// Summarizer condenses recent conversation entries into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, entries []Entry) (string, error)
}

// OpenAISummarizer summarizes through a chat completion.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISummarizer creates a summarizer. model defaults to gpt-4o-mini.
func NewOpenAISummarizer(client *openai.Client, model string) *OpenAISummarizer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAISummarizer{client: client, model: model}
}

const summaryPrompt = `Summarize this conversation excerpt in 2-3 sentences. Capture what the user wanted, what was done, and any open follow-ups. Plain text only.`

func (s *OpenAISummarizer) Summarize(ctx context.Context, entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("summarize: no entries")
	}

	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.Content)
		b.WriteString("\n")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.3,
		MaxTokens:   150,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
