package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/easymo/omni-agent-go/core"
	"github.com/easymo/omni-agent-go/tools"
)

// AnthropicCompleter backs the engine with the Claude Messages API.
type AnthropicCompleter struct {
	client *anthropic.Client
}

// NewAnthropicCompleter wraps an Anthropic client.
func NewAnthropicCompleter(client *anthropic.Client) *AnthropicCompleter {
	return &AnthropicCompleter{client: client}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt *Prompt) (*ModelTurn, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(prompt.Model),
		MaxTokens: prompt.MaxTokens,
		Messages:  buildMessages(prompt),
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}
	apiTools, err := buildTools(prompt.Tools)
	if err != nil {
		return nil, err
	}
	if len(apiTools) > 0 {
		params.Tools = apiTools
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude api: %w", err)
	}

	turn := &ModelTurn{
		Usage: core.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Text += content.Text
		case anthropic.ToolUseBlock:
			turn.Calls = append(turn.Calls, ToolCall{
				ID:   content.ID,
				Name: content.Name,
				Args: decodeArgs(content.Input),
			})
		}
	}
	return turn, nil
}

func buildMessages(prompt *Prompt) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range prompt.History {
		role := anthropic.MessageParamRoleUser
		if msg.Role == core.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}
	if prompt.UserMessage != "" {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt.UserMessage)},
		})
	}

	for _, exchange := range prompt.Exchanges {
		var assistantBlocks []anthropic.ContentBlockParamUnion
		if exchange.AssistantText != "" {
			assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(exchange.AssistantText))
		}
		for _, call := range exchange.Calls {
			args := call.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(call.ID, args, call.Name))
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: assistantBlocks,
		})

		var resultBlocks []anthropic.ContentBlockParamUnion
		for _, ret := range exchange.Returns {
			block := anthropic.ToolResultBlockParam{
				ToolUseID: ret.CallID,
				Content: []anthropic.ToolResultBlockParamContentUnion{
					{OfText: &anthropic.TextBlockParam{Text: ret.Content}},
				},
			}
			if ret.IsError {
				block.IsError = anthropic.Bool(true)
			}
			resultBlocks = append(resultBlocks, anthropic.ContentBlockParamUnion{OfToolResult: &block})
		}
		if len(resultBlocks) > 0 {
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: resultBlocks,
			})
		}
	}
	return messages
}

func buildTools(defs []*tools.Definition) ([]anthropic.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	params := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := convertSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		tool := anthropic.ToolParam{
			Name:        def.Name,
			InputSchema: schema,
		}
		if def.Description != "" {
			tool.Description = anthropic.String(def.Description)
		}
		params = append(params, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return params, nil
}

func convertSchema(raw map[string]interface{}) (anthropic.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return anthropic.ToolInputSchemaParam{Type: "object"}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropic.ToolInputSchemaParam{}, fmt.Errorf("marshal schema: %w", err)
	}
	var schema anthropic.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropic.ToolInputSchemaParam{}, fmt.Errorf("unmarshal schema: %w", err)
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}

func decodeArgs(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]interface{}{}
	}
	return args
}
