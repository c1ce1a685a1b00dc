package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Invoker dispatches a validated call to a definition's target. Exactly one
// attempt per call; retry policy belongs to the caller.
type Invoker interface {
	Invoke(ctx context.Context, def *Definition, args map[string]interface{}, tctx Context) (interface{}, *Error)
}

// remotePayload is the envelope remote function endpoints answer with.
type remotePayload struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HTTPInvoker posts tool calls to remote function endpoints. Each endpoint
// gets its own circuit breaker so one stale integration cannot burn the
// timeout budget of every call that follows it.
type HTTPInvoker struct {
	client   *http.Client
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPInvoker creates an invoker with the given base client. A nil client
// uses http.DefaultClient; per-call timeouts come from each definition.
func NewHTTPInvoker(client *http.Client) *HTTPInvoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPInvoker{
		client:   client,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (h *HTTPInvoker) breaker(endpoint string) *gobreaker.CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cb, ok := h.breakers[endpoint]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    endpoint,
		Timeout: 30 * time.Second,
	})
	h.breakers[endpoint] = cb
	return cb
}

func (h *HTTPInvoker) Invoke(ctx context.Context, def *Definition, args map[string]interface{}, tctx Context) (interface{}, *Error) {
	body := map[string]interface{}{}
	for k, v := range args {
		body[k] = v
	}
	if tctx.OwnerID != "" {
		body["user_id"] = tctx.OwnerID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, wrapError(KindInvalidInput, def.Name, "arguments are not serializable", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, def.Timeout)
	defer cancel()

	out, err := h.breaker(def.Target.Endpoint).Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, def.Target.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range def.Target.Headers {
			req.Header.Set(k, v)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		return &httpResponse{status: resp.StatusCode, body: raw}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, wrapError(KindTransportError, def.Name, "endpoint circuit open", err)
		}
		return nil, wrapError(KindTransportError, def.Name, "request failed", err)
	}

	resp := out.(*httpResponse)
	if resp.status < 200 || resp.status > 299 {
		return nil, newError(KindRemoteError, def.Name,
			fmt.Sprintf("endpoint returned status %d", resp.status))
	}

	var envelope remotePayload
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		// Not an envelope; hand the raw payload back.
		var generic interface{}
		if err := json.Unmarshal(resp.body, &generic); err != nil {
			return nil, wrapError(KindRemoteError, def.Name, "malformed response payload", err)
		}
		return generic, nil
	}
	if envelope.Error != "" || (envelope.Success != nil && !*envelope.Success) {
		msg := envelope.Error
		if msg == "" {
			msg = "endpoint reported failure"
		}
		return nil, newError(KindRemoteError, def.Name, msg)
	}
	if len(envelope.Data) > 0 {
		var data interface{}
		if err := json.Unmarshal(envelope.Data, &data); err == nil {
			return data, nil
		}
	}
	var generic interface{}
	_ = json.Unmarshal(resp.body, &generic)
	return generic, nil
}

type httpResponse struct {
	status int
	body   []byte
}

// LocalInvoker runs in-process tool functions.
type LocalInvoker struct{}

func (LocalInvoker) Invoke(ctx context.Context, def *Definition, args map[string]interface{}, tctx Context) (interface{}, *Error) {
	type result struct {
		data interface{}
		err  error
	}
	done := make(chan result, 1)
	callCtx, cancel := context.WithTimeout(ctx, def.Timeout)
	defer cancel()

	go func() {
		data, err := def.Target.Func(tctx, args)
		done <- result{data: data, err: err}
	}()

	select {
	case <-callCtx.Done():
		return nil, wrapError(KindTransportError, def.Name, "local call timed out", callCtx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, wrapError(KindRemoteError, def.Name, "tool reported failure", res.err)
		}
		return res.data, nil
	}
}

// DispatchInvoker picks the right invoker per target kind.
type DispatchInvoker struct {
	HTTP  Invoker
	Local Invoker
}

// NewDispatchInvoker wires the default HTTP and local invokers.
func NewDispatchInvoker(client *http.Client) *DispatchInvoker {
	return &DispatchInvoker{
		HTTP:  NewHTTPInvoker(client),
		Local: LocalInvoker{},
	}
}

func (d *DispatchInvoker) Invoke(ctx context.Context, def *Definition, args map[string]interface{}, tctx Context) (interface{}, *Error) {
	switch def.Target.Kind {
	case TargetLocal:
		return d.Local.Invoke(ctx, def, args, tctx)
	default:
		return d.HTTP.Invoke(ctx, def, args, tctx)
	}
}
