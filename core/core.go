// Package core holds the conversation types shared across the runtime.
package core

import "encoding/json"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is an inbound message from the messaging channel.
// The channel is assumed to deliver plain text plus a stable owner id;
// Context optionally carries pre-classified state (e.g. active domain).
type Request struct {
	Text    string            `json:"text"`
	OwnerID string            `json:"owner_id"`
	Context map[string]string `json:"context,omitempty"`
}

// Button is a structured follow-up action attached to a reply.
type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Reply is the orchestrator's answer to one inbound request.
type Reply struct {
	Text      string          `json:"text"`
	Buttons   []Button        `json:"buttons,omitempty"`
	ToolsUsed []ToolExecution `json:"tools_used,omitempty"`
	Intent    *Intent         `json:"intent,omitempty"`
	ThreadID  string          `json:"thread_id,omitempty"`
}

// Intent is the classification attached to a reply.
type Intent struct {
	Domain     string  `json:"domain"`
	Name       string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// ToolExecution records one tool invocation during a run.
type ToolExecution struct {
	Tool       string          `json:"tool"`
	Input      json.RawMessage `json:"input,omitempty"`
	Result     interface{}     `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// TokenUsage tracks completion-service token consumption for a run.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
