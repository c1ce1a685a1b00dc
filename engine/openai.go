package engine

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRunService backs the assistant run mode with hosted assistant
// threads.
type OpenAIRunService struct {
	client      *openai.Client
	assistantID string
}

// NewOpenAIRunService wraps a client for one configured assistant.
func NewOpenAIRunService(client *openai.Client, assistantID string) (*OpenAIRunService, error) {
	if assistantID == "" {
		return nil, fmt.Errorf("run service: assistant id required")
	}
	return &OpenAIRunService{client: client, assistantID: assistantID}, nil
}

func (s *OpenAIRunService) CreateThread(ctx context.Context) (string, error) {
	thread, err := s.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (s *OpenAIRunService) AddMessage(ctx context.Context, threadID, text string) error {
	_, err := s.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	return err
}

func (s *OpenAIRunService) StartRun(ctx context.Context, threadID, instructions string) (*RunState, error) {
	run, err := s.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:  s.assistantID,
		Instructions: instructions,
	})
	if err != nil {
		return nil, err
	}
	return convertRun(run), nil
}

func (s *OpenAIRunService) PollRun(ctx context.Context, threadID, runID string) (*RunState, error) {
	run, err := s.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}
	return convertRun(run), nil
}

func (s *OpenAIRunService) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error {
	req := openai.SubmitToolOutputsRequest{}
	for _, out := range outputs {
		req.ToolOutputs = append(req.ToolOutputs, openai.ToolOutput{
			ToolCallID: out.CallID,
			Output:     out.Output,
		})
	}
	_, err := s.client.SubmitToolOutputs(ctx, threadID, runID, req)
	return err
}

// LatestReply reads the newest assistant message on the thread.
func (s *OpenAIRunService) LatestReply(ctx context.Context, threadID string) (string, error) {
	limit := 10
	order := "desc"
	list, err := s.client.ListMessage(ctx, threadID, &limit, &order, nil, nil)
	if err != nil {
		return "", err
	}
	for _, msg := range list.Messages {
		if msg.Role != string(openai.ChatMessageRoleAssistant) {
			continue
		}
		for _, content := range msg.Content {
			if content.Type == "text" && content.Text != nil {
				return content.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("no assistant reply on thread %s", threadID)
}

func convertRun(run openai.Run) *RunState {
	state := &RunState{
		ID:     run.ID,
		Status: RunStatus(run.Status),
	}
	if run.LastError != nil {
		state.LastError = run.LastError.Message
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			args := map[string]interface{}{}
			if call.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
					args = map[string]interface{}{}
				}
			}
			state.PendingCalls = append(state.PendingCalls, ToolCall{
				ID:   call.ID,
				Name: call.Function.Name,
				Args: args,
			})
		}
	}
	return state
}
