// Package engine runs the conversational agent: intent routing, context
// composition, the model loop with tool dispatch, and memory capture.
package engine

import (
	"context"

	"github.com/easymo/omni-agent-go/core"
	"github.com/easymo/omni-agent-go/tools"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolReturn carries one tool result back to the model.
type ToolReturn struct {
	CallID  string
	Content string
	IsError bool
}

// Exchange is one completed model round inside a run: the assistant
// output plus the tool results produced for it.
type Exchange struct {
	AssistantText string
	Calls         []ToolCall
	Returns       []ToolReturn
}

// Prompt is the full model request for one round.
type Prompt struct {
	System      string
	Model       string
	MaxTokens   int64
	History     []core.Message
	UserMessage string
	Tools       []*tools.Definition
	Exchanges   []Exchange
}

// ModelTurn is one model response.
type ModelTurn struct {
	Text  string
	Calls []ToolCall
	Usage core.TokenUsage
}

// Completer is the single-shot model backend. Implementations translate
// the neutral prompt into their provider's wire format.
type Completer interface {
	Complete(ctx context.Context, prompt *Prompt) (*ModelTurn, error)
}
