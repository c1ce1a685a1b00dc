package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/easymo/omni-agent-go/composer"
	"github.com/easymo/omni-agent-go/core"
	"github.com/easymo/omni-agent-go/intent"
	"github.com/easymo/omni-agent-go/memory"
	"github.com/easymo/omni-agent-go/tools"
)

// DefaultSystemPrompt is the agent persona for the completion run mode.
const DefaultSystemPrompt = `You are easyMO, Rwanda's WhatsApp assistant for payments, moto rides, listings, and local commerce.

GUIDELINES:
- Be brief and conversational. WhatsApp messages should rarely exceed three sentences.
- Use tools when you have enough information; ask one clarifying question when you don't.
- Amounts are in Rwandan francs (RWF). Phone numbers follow Rwandan formats.
- Never invent transaction results. If a tool fails, say so plainly and suggest the next step.
- Match the user's language when they write in Kinyarwanda or French.`

// Engine is the agent orchestrator for the completion run mode: one
// inbound message in, one reply out, with tool rounds in between.
type Engine struct {
	completer  Completer
	intents    *intent.Router
	composer   *composer.Composer
	memories   *memory.Manager
	executor   tools.Executor
	registry   *tools.Registry
	guardrails *Guardrails
	dupes      *duplicateSuppressor
	sessions   *sessionStore
	assistant  *AssistantRunner

	systemPrompt string
	model        string
	maxTokens    int64
	maxRounds    int
}

// Config wires an Engine. Completer, Intents, and Registry are
// required; everything else degrades gracefully when nil.
type Config struct {
	Completer Completer
	Intents   *intent.Router
	Composer  *composer.Composer
	Memories  *memory.Manager
	Executor  tools.Executor
	Registry  *tools.Registry

	// Assistant switches the engine to the polled assistant run mode.
	// When nil, runs use the single-shot completion loop.
	Assistant *AssistantRunner

	Guardrails   *Guardrails
	SystemPrompt string
	Model        string
	MaxTokens    int64

	// MaxRounds caps model/tool round trips per run. Defaults to 10.
	MaxRounds int

	// DuplicateWindow suppresses identical resends. Defaults to 30s.
	DuplicateWindow time.Duration
	HistoryLimit    int
}

// New validates the config and builds an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Completer == nil && cfg.Assistant == nil {
		return nil, fmt.Errorf("engine: completer or assistant runner required")
	}
	if cfg.Intents == nil {
		return nil, fmt.Errorf("engine: intent router required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("engine: tool registry required")
	}
	executor := cfg.Executor
	if executor == nil {
		executor = tools.NewRouter(cfg.Registry, nil, nil)
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Engine{
		completer:    cfg.Completer,
		intents:      cfg.Intents,
		composer:     cfg.Composer,
		memories:     cfg.Memories,
		executor:     executor,
		registry:     cfg.Registry,
		guardrails:   cfg.Guardrails,
		assistant:    cfg.Assistant,
		dupes:        newDuplicateSuppressor(cfg.DuplicateWindow),
		sessions:     newSessionStore(cfg.HistoryLimit),
		systemPrompt: systemPrompt,
		model:        model,
		maxTokens:    maxTokens,
		maxRounds:    maxRounds,
	}, nil
}

// Respond processes one inbound message. It never returns an error:
// unrecoverable failures become the generic fallback reply.
func (e *Engine) Respond(ctx context.Context, req *core.Request) *core.Reply {
	if req == nil || req.OwnerID == "" {
		return FallbackReply()
	}
	if req.Text == "" {
		return &core.Reply{
			Text:    "Tell me what you need and I'll get started.",
			Buttons: ContextualButtons("admin_support"),
		}
	}

	if cached, ok := e.dupes.check(req.OwnerID, req.Text); ok {
		log.Printf("[ENGINE] Duplicate message suppressed for owner=%s", req.OwnerID)
		return cached
	}
	if e.guardrails != nil && !e.guardrails.Allow(req.OwnerID) {
		log.Printf("[ENGINE] Rate limited owner=%s", req.OwnerID)
		return &core.Reply{Text: rateLimitText}
	}

	intentRes := e.intents.Route(ctx, req.Text, req.OwnerID, req.Context)

	system := e.systemPrompt
	if e.composer != nil {
		composed := e.composer.Compose(ctx, req.OwnerID, req.Text, intentRes.Domain)
		if composed.Text != "" {
			system += "\n\nCONTEXT:\n" + composed.Text
		}
	}

	sess := e.sessions.get(req.OwnerID)
	var reply *core.Reply
	if e.assistant != nil {
		reply = e.runAssistant(ctx, req, intentRes, system)
	} else {
		reply = e.runLoop(ctx, req, intentRes, system, sess.id)
	}

	reply.Intent = &core.Intent{
		Domain:     intentRes.Domain,
		Name:       intentRes.Intent,
		Confidence: intentRes.Confidence,
	}
	if len(reply.Buttons) == 0 {
		reply.Buttons = ContextualButtons(intentRes.Domain)
	}

	conversationID, turnNumber := e.sessions.appendTurn(req.OwnerID, req.Text, reply.Text)
	e.logTurn(ctx, req, intentRes, reply, conversationID, turnNumber)
	e.dupes.remember(req.OwnerID, req.Text, reply)
	return reply
}

// runAssistant delegates to the polled assistant run mode.
func (e *Engine) runAssistant(ctx context.Context, req *core.Request, intentRes *intent.Result, system string) *core.Reply {
	text, threadID, toolsUsed, err := e.assistant.Run(ctx, req.OwnerID, req.Text, system, tools.Context{
		OwnerID: req.OwnerID,
		Domain:  intentRes.Domain,
	})
	if err != nil {
		log.Printf("[ENGINE] Assistant run failed for owner=%s: %v", req.OwnerID, err)
		reply := FallbackReply()
		reply.ThreadID = threadID
		reply.ToolsUsed = toolsUsed
		return reply
	}
	return &core.Reply{Text: text, ThreadID: threadID, ToolsUsed: toolsUsed}
}

// runLoop drives model rounds until the model stops calling tools or
// the round cap is hit.
func (e *Engine) runLoop(ctx context.Context, req *core.Request, intentRes *intent.Result, system, sessionID string) *core.Reply {
	prompt := &Prompt{
		System:      system,
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		History:     e.sessions.history(req.OwnerID),
		UserMessage: req.Text,
		Tools:       e.toolDefs(),
	}

	var toolsUsed []core.ToolExecution
	var usage core.TokenUsage

	for round := 0; round < e.maxRounds; round++ {
		if ctx.Err() != nil {
			log.Printf("[ENGINE] Run cancelled for owner=%s: %v", req.OwnerID, ctx.Err())
			return FallbackReply()
		}

		turn, err := e.completer.Complete(ctx, prompt)
		if err != nil {
			log.Printf("[ENGINE] Completion failed for owner=%s: %v", req.OwnerID, err)
			return FallbackReply()
		}
		usage.InputTokens += turn.Usage.InputTokens
		usage.OutputTokens += turn.Usage.OutputTokens

		if len(turn.Calls) == 0 {
			log.Printf("[ENGINE] Run complete owner=%s rounds=%d tokens_in=%d tokens_out=%d",
				req.OwnerID, round+1, usage.InputTokens, usage.OutputTokens)
			return &core.Reply{Text: turn.Text, ToolsUsed: toolsUsed}
		}

		exchange := Exchange{AssistantText: turn.Text, Calls: turn.Calls}
		for _, call := range turn.Calls {
			res := e.executor.Execute(ctx, call.Name, call.Args, tools.Context{
				OwnerID:   req.OwnerID,
				Domain:    intentRes.Domain,
				SessionID: sessionID,
			})
			exchange.Returns = append(exchange.Returns, toolReturn(call, res))
			toolsUsed = append(toolsUsed, toolExecution(call, res))
		}
		prompt.Exchanges = append(prompt.Exchanges, exchange)
	}

	log.Printf("[ENGINE] Round cap reached for owner=%s", req.OwnerID)
	return FallbackReply()
}

func (e *Engine) toolDefs() []*tools.Definition {
	names := e.registry.List()
	defs := make([]*tools.Definition, 0, len(names))
	for _, name := range names {
		if def := e.registry.Get(name); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (e *Engine) logTurn(ctx context.Context, req *core.Request, intentRes *intent.Result, reply *core.Reply, conversationID string, turnNumber int) {
	if e.memories == nil {
		return
	}
	turn := memory.Turn{
		ConversationID: conversationID,
		TurnNumber:     turnNumber,
		UserMessage:    req.Text,
		AgentReply:     reply.Text,
		Domain:         intentRes.Domain,
		Intent:         intentRes.Intent,
		Context:        req.Context,
	}
	for _, exec := range reply.ToolsUsed {
		turn.ToolsUsed = append(turn.ToolsUsed, exec.Tool)
	}
	if err := e.memories.LogTurn(ctx, req.OwnerID, turn); err != nil {
		log.Printf("[ENGINE] Memory capture failed for owner=%s: %v", req.OwnerID, err)
	}
}

// Reset clears the owner's in-process conversation state.
func (e *Engine) Reset(ownerID string) {
	e.sessions.reset(ownerID)
}

func toolReturn(call ToolCall, res *tools.Result) ToolReturn {
	if res.Success {
		content := "ok"
		if res.Data != nil {
			if data, err := json.Marshal(res.Data); err == nil {
				content = string(data)
			}
		}
		return ToolReturn{CallID: call.ID, Content: content}
	}
	return ToolReturn{CallID: call.ID, Content: res.Error.Error(), IsError: true}
}

func toolExecution(call ToolCall, res *tools.Result) core.ToolExecution {
	exec := core.ToolExecution{
		Tool:       call.Name,
		DurationMs: res.DurationMs,
	}
	if input, err := json.Marshal(tools.SanitizeArgs(call.Args)); err == nil {
		exec.Input = input
	}
	if res.Success {
		exec.Result = res.Data
	} else {
		exec.Error = res.Error.Error()
	}
	return exec
}
