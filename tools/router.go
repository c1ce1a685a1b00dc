package tools

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easymo/omni-agent-go/audit"
)

// Executor is what the orchestrator dispatches tool calls through.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}, tctx Context) *Result
}

// Router looks up, validates, and dispatches tool calls. It guarantees at
// most one attempt per call and never returns an error through the function
// signature: every failure is classified inside the Result.
type Router struct {
	registry *Registry
	invoker  Invoker
	auditLog audit.Logger

	mu      sync.Mutex
	history []executionRecord
}

type executionRecord struct {
	tool    string
	success bool
}

const historyLimit = 100

// NewRouter creates a router over the registry. auditLog may be nil.
func NewRouter(registry *Registry, invoker Invoker, auditLog audit.Logger) *Router {
	if invoker == nil {
		invoker = NewDispatchInvoker(nil)
	}
	return &Router{registry: registry, invoker: invoker, auditLog: auditLog}
}

// Execute runs one tool call: lookup, validate, dispatch, classify, record.
func (r *Router) Execute(ctx context.Context, name string, args map[string]interface{}, tctx Context) *Result {
	start := time.Now()

	def := r.registry.Get(name)
	if def == nil {
		res := r.fail(newError(KindToolNotFound, name, "no definition registered"), start)
		r.record(ctx, tctx, res, args)
		return res
	}

	if err := ValidateArgs(def.InputSchema, args); err != nil {
		// Stops here: no side effect may happen on invalid input.
		res := r.fail(newError(KindInvalidInput, name, err.Error()), start)
		r.record(ctx, tctx, res, args)
		return res
	}

	data, toolErr := r.invoker.Invoke(ctx, def, args, tctx)
	duration := time.Since(start).Milliseconds()

	res := &Result{
		Success:    toolErr == nil,
		Data:       data,
		Error:      toolErr,
		DurationMs: duration,
		ToolName:   name,
	}
	r.record(ctx, tctx, res, args)
	return res
}

// List exposes the underlying registry's tool names.
func (r *Router) List() []string {
	return r.registry.List()
}

// Registry returns the router's registry.
func (r *Router) Registry() *Registry {
	return r.registry
}

func (r *Router) fail(toolErr *Error, start time.Time) *Result {
	return &Result{
		Success:    false,
		Error:      toolErr,
		DurationMs: time.Since(start).Milliseconds(),
		ToolName:   toolErr.Tool,
	}
}

func (r *Router) record(ctx context.Context, tctx Context, res *Result, args map[string]interface{}) {
	r.mu.Lock()
	r.history = append(r.history, executionRecord{tool: res.ToolName, success: res.Success})
	if len(r.history) > historyLimit {
		r.history = r.history[len(r.history)-historyLimit:]
	}
	r.mu.Unlock()

	if !res.Success {
		log.Printf("[TOOLS] %s failed (%s): %s", res.ToolName, res.Error.Kind, res.Error.Msg)
	}

	if r.auditLog == nil {
		return
	}
	entry := &audit.Entry{
		ID:         uuid.New().String(),
		OwnerID:    tctx.OwnerID,
		SessionID:  tctx.SessionID,
		ToolName:   res.ToolName,
		Success:    res.Success,
		DurationMs: res.DurationMs,
		Timestamp:  time.Now(),
	}
	if input, err := json.Marshal(SanitizeArgs(args)); err == nil {
		entry.Input = input
	}
	if res.Data != nil {
		if output, err := json.Marshal(res.Data); err == nil {
			entry.Output = output
		}
	}
	if res.Error != nil {
		entry.Error = res.Error.Error()
	}
	r.auditLog.Record(ctx, entry)
}

// Stats summarizes recent executions.
type Stats struct {
	TotalExecutions int
	SuccessRate     float64
	MostUsedTools   []ToolCount
}

// ToolCount pairs a tool name with its recent invocation count.
type ToolCount struct {
	Tool  string
	Count int
}

// Stats reports over the bounded execution history.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := len(r.history)
	successes := 0
	counts := make(map[string]int)
	for _, rec := range r.history {
		if rec.success {
			successes++
		}
		counts[rec.tool]++
	}

	most := make([]ToolCount, 0, len(counts))
	for tool, count := range counts {
		most = append(most, ToolCount{Tool: tool, Count: count})
	}
	sort.Slice(most, func(i, j int) bool {
		if most[i].Count != most[j].Count {
			return most[i].Count > most[j].Count
		}
		return most[i].Tool < most[j].Tool
	})
	if len(most) > 10 {
		most = most[:10]
	}

	stats := Stats{TotalExecutions: total, MostUsedTools: most}
	if total > 0 {
		stats.SuccessRate = float64(successes) / float64(total)
	}
	return stats
}

// SanitizeArgs strips credential-looking fields before logging.
func SanitizeArgs(args map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(args))
	for k, v := range args {
		switch k {
		case "password", "api_key", "token", "secret":
			sanitized[k] = "[REDACTED]"
		default:
			sanitized[k] = v
		}
	}
	return sanitized
}

// FallbackRouter answers from a verified primary for tools on its allow-list
// and falls through to a permissive secondary for everything else. Not every
// declared tool has a confirmed working backend; the two tiers keep a stale
// primary integration from becoming a total outage.
type FallbackRouter struct {
	primary   Executor
	secondary Executor
	verified  map[string]struct{}
}

// NewFallbackRouter builds the two-tier router. Tools named in verified are
// dispatched on primary; all others go to secondary.
func NewFallbackRouter(primary, secondary Executor, verified []string) *FallbackRouter {
	set := make(map[string]struct{}, len(verified))
	for _, name := range verified {
		set[name] = struct{}{}
	}
	return &FallbackRouter{primary: primary, secondary: secondary, verified: set}
}

func (f *FallbackRouter) Execute(ctx context.Context, name string, args map[string]interface{}, tctx Context) *Result {
	if _, ok := f.verified[name]; ok {
		return f.primary.Execute(ctx, name, args, tctx)
	}
	log.Printf("[TOOLS] %s not on verified list, falling back to secondary router", name)
	return f.secondary.Execute(ctx, name, args, tctx)
}
