package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easymo/omni-agent-go/tools"
)

// fakeRunService serves scripted run states: StartRun pops the first,
// each PollRun pops the next, and the last state repeats.
type fakeRunService struct {
	states     []*RunState
	reply      string
	badThreads map[string]bool

	threadSeq int
	messages  map[string][]string
	submitted [][]ToolOutput
	polls     int
}

func newFakeRunService(reply string, states ...*RunState) *fakeRunService {
	return &fakeRunService{
		states:     states,
		reply:      reply,
		badThreads: make(map[string]bool),
		messages:   make(map[string][]string),
	}
}

func (f *fakeRunService) CreateThread(ctx context.Context) (string, error) {
	f.threadSeq++
	return fmt.Sprintf("thread-%d", f.threadSeq), nil
}

func (f *fakeRunService) AddMessage(ctx context.Context, threadID, text string) error {
	if f.badThreads[threadID] {
		return errors.New("thread expired")
	}
	f.messages[threadID] = append(f.messages[threadID], text)
	return nil
}

func (f *fakeRunService) next() *RunState {
	state := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return state
}

func (f *fakeRunService) StartRun(ctx context.Context, threadID, instructions string) (*RunState, error) {
	return f.next(), nil
}

func (f *fakeRunService) PollRun(ctx context.Context, threadID, runID string) (*RunState, error) {
	f.polls++
	return f.next(), nil
}

func (f *fakeRunService) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error {
	f.submitted = append(f.submitted, outputs)
	return nil
}

func (f *fakeRunService) LatestReply(ctx context.Context, threadID string) (string, error) {
	return f.reply, nil
}

// recordingExecutor answers every call successfully and remembers it.
type recordingExecutor struct {
	executed []string
}

func (r *recordingExecutor) Execute(ctx context.Context, name string, args map[string]interface{}, tctx tools.Context) *tools.Result {
	r.executed = append(r.executed, name)
	return &tools.Result{Success: true, Data: map[string]interface{}{"status": "ok"}, ToolName: name}
}

func newTestRunner(t *testing.T, svc RunService, opts ...func(*AssistantConfig)) (*AssistantRunner, *recordingExecutor) {
	t.Helper()
	executor := &recordingExecutor{}
	cfg := AssistantConfig{Service: svc, Executor: executor}
	for _, opt := range opts {
		opt(&cfg)
	}
	runner, err := NewAssistantRunner(cfg)
	require.NoError(t, err)
	// No real waiting in tests.
	runner.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return runner, executor
}

func TestAssistantRunCompletes(t *testing.T) {
	svc := newFakeRunService("All done, your QR code is ready.",
		&RunState{ID: "run-1", Status: RunQueued},
		&RunState{ID: "run-1", Status: RunInProgress},
		&RunState{ID: "run-1", Status: RunCompleted},
	)
	runner, _ := newTestRunner(t, svc)

	reply, threadID, toolsUsed, err := runner.Run(context.Background(), "u1", "get paid 5000", "be brief", tools.Context{OwnerID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "All done, your QR code is ready.", reply)
	assert.Equal(t, "thread-1", threadID)
	assert.Empty(t, toolsUsed)
	assert.Equal(t, []string{"get paid 5000"}, svc.messages["thread-1"])
}

func TestAssistantRequiresActionExecutesTools(t *testing.T) {
	svc := newFakeRunService("Payment settled.",
		&RunState{ID: "run-1", Status: RunRequiresAction, PendingCalls: []ToolCall{
			{ID: "c1", Name: "check_payment_status", Args: map[string]interface{}{"reference": "TX-1"}},
		}},
		&RunState{ID: "run-1", Status: RunCompleted},
	)
	runner, executor := newTestRunner(t, svc)

	reply, _, toolsUsed, err := runner.Run(context.Background(), "u1", "status of TX-1", "", tools.Context{OwnerID: "u1"})

	require.NoError(t, err)
	assert.Equal(t, "Payment settled.", reply)
	assert.Equal(t, []string{"check_payment_status"}, executor.executed)

	require.Len(t, svc.submitted, 1)
	require.Len(t, svc.submitted[0], 1)
	assert.Equal(t, "c1", svc.submitted[0][0].CallID)
	assert.JSONEq(t, `{"status":"ok"}`, svc.submitted[0][0].Output)

	require.Len(t, toolsUsed, 1)
	assert.Equal(t, "check_payment_status", toolsUsed[0].Tool)
}

func TestAssistantRunTimesOut(t *testing.T) {
	svc := newFakeRunService("never read",
		&RunState{ID: "run-1", Status: RunQueued},
	)
	runner, _ := newTestRunner(t, svc, func(cfg *AssistantConfig) { cfg.Timeout = 60 * time.Second })

	current := time.Now()
	runner.now = func() time.Time {
		current = current.Add(25 * time.Second)
		return current
	}

	_, _, _, err := runner.Run(context.Background(), "u1", "hello", "", tools.Context{OwnerID: "u1"})
	assert.ErrorIs(t, err, ErrRunTimeout)
}

func TestAssistantRunFailed(t *testing.T) {
	svc := newFakeRunService("never read",
		&RunState{ID: "run-1", Status: RunFailed, LastError: "rate_limit_exceeded"},
	)
	runner, _ := newTestRunner(t, svc)

	_, _, _, err := runner.Run(context.Background(), "u1", "hello", "", tools.Context{OwnerID: "u1"})

	require.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, err.Error(), "rate_limit_exceeded")
}

func TestAssistantRecreatesExpiredThread(t *testing.T) {
	svc := newFakeRunService("hello again",
		&RunState{ID: "run-1", Status: RunCompleted},
	)
	runner, _ := newTestRunner(t, svc)

	_, threadID, _, err := runner.Run(context.Background(), "u1", "first", "", tools.Context{OwnerID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "thread-1", threadID)

	// The server-side thread expires between turns.
	svc.badThreads["thread-1"] = true

	_, threadID, _, err = runner.Run(context.Background(), "u1", "second", "", tools.Context{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "thread-2", threadID)
	assert.Equal(t, []string{"second"}, svc.messages["thread-2"])

	// The fresh thread is cached for the next turn.
	cached, ok := runner.threads.get("u1")
	require.True(t, ok)
	assert.Equal(t, "thread-2", cached)
}

func TestAssistantRoundCap(t *testing.T) {
	svc := newFakeRunService("never read",
		&RunState{ID: "run-1", Status: RunRequiresAction, PendingCalls: []ToolCall{
			{ID: "c1", Name: "check_payment_status", Args: map[string]interface{}{"reference": "TX-1"}},
		}},
	)
	runner, _ := newTestRunner(t, svc, func(cfg *AssistantConfig) { cfg.MaxRounds = 2 })

	_, _, _, err := runner.Run(context.Background(), "u1", "loop forever", "", tools.Context{OwnerID: "u1"})

	require.ErrorIs(t, err, ErrRunFailed)
	assert.Len(t, svc.submitted, 2, "two rounds answered before the cap")
}
