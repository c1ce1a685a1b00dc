package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/easymo/omni-agent-go/core"
	"github.com/easymo/omni-agent-go/tools"
)

// RunStatus is the lifecycle state of an assistant run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunExpired        RunStatus = "expired"
	RunCancelled      RunStatus = "cancelled"
)

// RunState is a point-in-time view of one assistant run.
type RunState struct {
	ID           string
	Status       RunStatus
	PendingCalls []ToolCall
	LastError    string
}

// ToolOutput is one tool result submitted back to a waiting run.
type ToolOutput struct {
	CallID string
	Output string
}

// RunService is the hosted assistant backend: threads live server-side
// and runs are polled to completion.
type RunService interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID, instructions string) (*RunState, error)
	PollRun(ctx context.Context, threadID, runID string) (*RunState, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
	LatestReply(ctx context.Context, threadID string) (string, error)
}

// Terminal failures of an assistant run.
var (
	ErrRunTimeout = errors.New("assistant run timed out")
	ErrRunFailed  = errors.New("assistant run failed")
)

// AssistantRunner drives the polled assistant run mode. The clock and
// sleep functions are injectable so the state machine is testable
// without real waiting.
type AssistantRunner struct {
	svc      RunService
	executor tools.Executor
	threads  *threadCache

	pollInterval time.Duration
	timeout      time.Duration
	maxRounds    int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// AssistantConfig wires an AssistantRunner.
type AssistantConfig struct {
	Service  RunService
	Executor tools.Executor

	// PollInterval between run status checks. Defaults to 500ms.
	PollInterval time.Duration
	// Timeout bounds one whole run. Defaults to 60s.
	Timeout time.Duration
	// MaxRounds caps requires-action round trips. Defaults to 10.
	MaxRounds int
}

// NewAssistantRunner validates the config and builds a runner.
func NewAssistantRunner(cfg AssistantConfig) (*AssistantRunner, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("assistant runner: run service required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("assistant runner: tool executor required")
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return &AssistantRunner{
		svc:          cfg.Service,
		executor:     cfg.Executor,
		threads:      newThreadCache(),
		pollInterval: pollInterval,
		timeout:      timeout,
		maxRounds:    maxRounds,
		now:          time.Now,
		sleep:        sleepCtx,
	}, nil
}

// Run posts the message on the owner's thread, drives the run to a
// terminal state, and returns the assistant's reply with the thread id.
func (r *AssistantRunner) Run(ctx context.Context, ownerID, text, instructions string, tctx tools.Context) (string, string, []core.ToolExecution, error) {
	threadID, err := r.ensureThread(ctx, ownerID, text)
	if err != nil {
		return "", "", nil, err
	}

	state, err := r.svc.StartRun(ctx, threadID, instructions)
	if err != nil {
		return "", threadID, nil, fmt.Errorf("start run: %w", err)
	}

	toolsUsed, err := r.drive(ctx, threadID, state, tctx)
	if err != nil {
		return "", threadID, toolsUsed, err
	}

	reply, err := r.svc.LatestReply(ctx, threadID)
	if err != nil {
		return "", threadID, toolsUsed, fmt.Errorf("read reply: %w", err)
	}
	return reply, threadID, toolsUsed, nil
}

// ensureThread posts the message, transparently recreating the thread
// when the cached one has expired server-side.
func (r *AssistantRunner) ensureThread(ctx context.Context, ownerID, text string) (string, error) {
	threadID, cached := r.threads.get(ownerID)
	if !cached {
		var err error
		threadID, err = r.svc.CreateThread(ctx)
		if err != nil {
			return "", fmt.Errorf("create thread: %w", err)
		}
		r.threads.set(ownerID, threadID)
	}

	if err := r.svc.AddMessage(ctx, threadID, text); err != nil {
		if !cached {
			return "", fmt.Errorf("add message: %w", err)
		}
		log.Printf("[ASSISTANT] Thread %s unusable for owner=%s, recreating: %v", threadID, ownerID, err)
		r.threads.drop(ownerID)
		fresh, createErr := r.svc.CreateThread(ctx)
		if createErr != nil {
			return "", fmt.Errorf("recreate thread: %w", createErr)
		}
		if err := r.svc.AddMessage(ctx, fresh, text); err != nil {
			return "", fmt.Errorf("add message: %w", err)
		}
		r.threads.set(ownerID, fresh)
		threadID = fresh
	}
	return threadID, nil
}

// drive polls the run to a terminal state, answering requires-action
// rounds with tool outputs.
func (r *AssistantRunner) drive(ctx context.Context, threadID string, state *RunState, tctx tools.Context) ([]core.ToolExecution, error) {
	deadline := r.now().Add(r.timeout)
	rounds := 0
	var toolsUsed []core.ToolExecution

	for {
		switch state.Status {
		case RunCompleted:
			return toolsUsed, nil

		case RunFailed, RunExpired, RunCancelled:
			return toolsUsed, fmt.Errorf("%w: status=%s %s", ErrRunFailed, state.Status, state.LastError)

		case RunRequiresAction:
			rounds++
			if rounds > r.maxRounds {
				return toolsUsed, fmt.Errorf("%w: exceeded %d tool rounds", ErrRunFailed, r.maxRounds)
			}
			outputs := make([]ToolOutput, 0, len(state.PendingCalls))
			for _, call := range state.PendingCalls {
				res := r.executor.Execute(ctx, call.Name, call.Args, tctx)
				ret := toolReturn(call, res)
				outputs = append(outputs, ToolOutput{CallID: ret.CallID, Output: ret.Content})
				toolsUsed = append(toolsUsed, toolExecution(call, res))
			}
			if err := r.svc.SubmitToolOutputs(ctx, threadID, state.ID, outputs); err != nil {
				return toolsUsed, fmt.Errorf("submit tool outputs: %w", err)
			}

		default:
			if r.now().After(deadline) {
				return toolsUsed, ErrRunTimeout
			}
			if err := r.sleep(ctx, r.pollInterval); err != nil {
				return toolsUsed, err
			}
		}

		if r.now().After(deadline) {
			return toolsUsed, ErrRunTimeout
		}
		var err error
		state, err = r.svc.PollRun(ctx, threadID, state.ID)
		if err != nil {
			return toolsUsed, fmt.Errorf("poll run: %w", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
