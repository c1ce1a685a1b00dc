package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const classifierPrompt = `You are an intent classifier for easyMO, Rwanda's WhatsApp super-app.

AVAILABLE DOMAINS & INTENTS:
PAYMENTS: get_paid, pay_someone, confirm_paid, history, menu
MOTO: driver_create_trip, passenger_create_intent, view_nearby_drivers, view_nearby_passengers, menu
LISTINGS: property_list, property_search, vehicle_list, vehicle_search, menu
COMMERCE: order_pharmacy, order_hardware, order_bar, see_menu, menu
ADMIN_SUPPORT: handoff_request, help, feedback_submit, menu

RESPONSE FORMAT: JSON only, no explanations:
{"domain": "domain_name", "intent": "intent_name", "confidence": 0.0-1.0, "slots": {}}`

// OpenAIClassifier is the LLM fallback path of the intent router.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier creates a classifier. model defaults to gpt-4o-mini.
func NewOpenAIClassifier(client *openai.Client, model string) *OpenAIClassifier {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClassifier{client: client, model: model}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, message, ownerID string, convContext map[string]string) (*Result, error) {
	userContent := fmt.Sprintf("User message: %q", message)
	if len(convContext) > 0 {
		ctxJSON, _ := json.Marshal(convContext)
		userContent += fmt.Sprintf("\nConversation context: %s", ctxJSON)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   200,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classify: empty response")
	}

	var parsed struct {
		Domain     string            `json:"domain"`
		Intent     string            `json:"intent"`
		Confidence float64           `json:"confidence"`
		Slots      map[string]string `json:"slots"`
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("classify: malformed response: %w", err)
	}

	confidence := parsed.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}
	return &Result{
		Domain:     strings.ToLower(parsed.Domain),
		Intent:     parsed.Intent,
		Confidence: confidence,
		Slots:      parsed.Slots,
	}, nil
}
