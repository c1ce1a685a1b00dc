package tools_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easymo/omni-agent-go/tools"
)

func httpDef(endpoint string) *tools.Definition {
	return &tools.Definition{
		Name:        "nearby_search",
		InputSchema: tools.ObjectSchema(map[string]interface{}{}),
		Target:      tools.Target{Kind: tools.TargetHTTP, Endpoint: endpoint},
		Timeout:     2 * time.Second,
	}
}

func TestHTTPInvokerUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"success": true, "data": {"drivers": 3}}`))
	}))
	defer server.Close()

	invoker := tools.NewHTTPInvoker(server.Client())
	data, toolErr := invoker.Invoke(context.Background(), httpDef(server.URL),
		map[string]interface{}{"lat": 1.95}, tools.Context{OwnerID: "u1"})

	require.Nil(t, toolErr)
	payload, ok := data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), payload["drivers"])
}

func TestHTTPInvokerMergesOwnerID(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	invoker := tools.NewHTTPInvoker(server.Client())
	_, toolErr := invoker.Invoke(context.Background(), httpDef(server.URL),
		map[string]interface{}{"lat": 1.95}, tools.Context{OwnerID: "owner-7"})

	require.Nil(t, toolErr)
	assert.Equal(t, "owner-7", gotBody["user_id"])
	assert.Equal(t, 1.95, gotBody["lat"])
}

func TestHTTPInvokerErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "no drivers nearby"}`))
	}))
	defer server.Close()

	invoker := tools.NewHTTPInvoker(server.Client())
	_, toolErr := invoker.Invoke(context.Background(), httpDef(server.URL), nil, tools.Context{})

	require.NotNil(t, toolErr)
	assert.Equal(t, tools.KindRemoteError, toolErr.Kind)
	assert.Contains(t, toolErr.Msg, "no drivers nearby")
}

func TestHTTPInvokerNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	invoker := tools.NewHTTPInvoker(server.Client())
	_, toolErr := invoker.Invoke(context.Background(), httpDef(server.URL), nil, tools.Context{})

	require.NotNil(t, toolErr)
	assert.Equal(t, tools.KindRemoteError, toolErr.Kind)
}

func TestHTTPInvokerUnreachableIsTransportError(t *testing.T) {
	invoker := tools.NewHTTPInvoker(nil)
	def := httpDef("http://127.0.0.1:1/never")

	_, toolErr := invoker.Invoke(context.Background(), def, nil, tools.Context{})

	require.NotNil(t, toolErr)
	assert.Equal(t, tools.KindTransportError, toolErr.Kind)
}

func TestLocalInvokerRunsFunc(t *testing.T) {
	def := &tools.Definition{
		Name:        "local_echo",
		InputSchema: tools.ObjectSchema(map[string]interface{}{}),
		Target: tools.Target{
			Kind: tools.TargetLocal,
			Func: func(tctx tools.Context, args map[string]interface{}) (interface{}, error) {
				return args["value"], nil
			},
		},
		Timeout: time.Second,
	}

	data, toolErr := tools.LocalInvoker{}.Invoke(context.Background(), def,
		map[string]interface{}{"value": "hello"}, tools.Context{})

	require.Nil(t, toolErr)
	assert.Equal(t, "hello", data)
}
