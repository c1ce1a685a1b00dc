package tools

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TargetKind says how a tool is invoked.
type TargetKind string

const (
	// TargetHTTP dispatches the call to a remote HTTP endpoint.
	TargetHTTP TargetKind = "http"

	// TargetLocal dispatches the call to an in-process function.
	TargetLocal TargetKind = "local"
)

// LocalFunc is the signature of an in-process tool implementation.
type LocalFunc func(ctx Context, args map[string]interface{}) (interface{}, error)

// Target is a tool's invocation target.
type Target struct {
	Kind     TargetKind
	Endpoint string
	Headers  map[string]string
	Func     LocalFunc
}

// Definition declares one callable tool: its input contract and where calls
// go. Definitions are loaded once at process start and treated as immutable.
type Definition struct {
	Name        string
	Description string
	Domain      string
	InputSchema map[string]interface{}
	Target      Target
	Timeout     time.Duration
}

// Context carries the caller identity into a tool invocation.
type Context struct {
	OwnerID   string
	Domain    string
	SessionID string
	Metadata  map[string]string
}

// Result is the outcome of one tool invocation.
type Result struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      *Error      `json:"error,omitempty"`
	DurationMs int64       `json:"execution_time_ms"`
	ToolName   string      `json:"tool_name"`
}

// Registry maps tool names to definitions. Registration of an existing name
// overwrites it: last writer wins.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register validates and stores a definition.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("register: tool name is required")
	}
	if err := validateSchema(def.InputSchema); err != nil {
		return fmt.Errorf("register %s: %w", def.Name, err)
	}
	switch def.Target.Kind {
	case TargetHTTP:
		if def.Target.Endpoint == "" {
			return fmt.Errorf("register %s: http target needs an endpoint", def.Name)
		}
	case TargetLocal:
		if def.Target.Func == nil {
			return fmt.Errorf("register %s: local target needs a function", def.Name)
		}
	default:
		return fmt.Errorf("register %s: unknown target kind %q", def.Name, def.Target.Kind)
	}
	if def.Timeout <= 0 {
		def.Timeout = 15 * time.Second
	}

	r.mu.Lock()
	r.tools[def.Name] = def
	r.mu.Unlock()
	return nil
}

// RegisterAll registers each definition, stopping on the first error.
func (r *Registry) RegisterAll(defs []*Definition) error {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the definition for name, or nil if not registered.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
