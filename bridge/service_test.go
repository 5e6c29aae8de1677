package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mcp-protocol/schema"

	"github.com/samscarrow/lmstudio-bridge/lmstudio"
	"github.com/samscarrow/lmstudio-bridge/logging"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	pool := lmstudio.NewPool(lmstudio.PoolConfig{})
	t.Cleanup(pool.Close)
	client := lmstudio.NewClient(pool, func(o *lmstudio.Options) { o.BaseURL = ts.URL })
	return New(client, logging.NewSlogLogger(logging.LogLevelError, "text", false))
}

func chatResponse(model, content string) string {
	resp := map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"total_tokens": 11},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestService_HealthCheck(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	text, err := svc.HealthCheck(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "LM Studio API is running and accessible.", text)
}

func TestService_HealthCheck_StatusCode(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"nope"}}`, http.StatusBadGateway)
	}))
	text, err := svc.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "LM Studio API returned status code 502.", text)
}

func TestService_HealthCheck_Unreachable(t *testing.T) {
	pool := lmstudio.NewPool(lmstudio.PoolConfig{})
	t.Cleanup(pool.Close)
	client := lmstudio.NewClient(pool, func(o *lmstudio.Options) { o.BaseURL = "http://127.0.0.1:1/v1" })
	svc := New(client, logging.NewSlogLogger(logging.LogLevelError, "text", false))

	text, err := svc.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, text, "Error connecting to LM Studio API:")
}

func TestService_ListModels(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"model-a","object":"model"},{"id":"model-b","object":"model"}]}`)
	}))
	text, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Available models in LM Studio:\n\n- model-a\n- model-b\n", text)
}

func TestService_ListModels_NoneFound(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	text, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No models found in LM Studio.", text)
}

func TestService_CurrentModel(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse("loaded-model", "I am loaded-model"))
	}))
	text, err := svc.CurrentModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Currently loaded model: loaded-model", text)
}

func TestService_ChatCompletion(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Temperature float64 `json:"temperature"`
			MaxTokens   int64   `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		// defaults apply when the caller omits sampling controls
		assert.InDelta(t, defaultTemperature, payload.Temperature, 1e-9)
		assert.Equal(t, int64(defaultMaxTokens), payload.MaxTokens)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse("m", "completion text"))
	}))
	text, err := svc.ChatCompletion(context.Background(), &ChatCompletionInput{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "completion text", text)
}

func TestService_ChatCompletion_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "empty response body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, chatResponse("m", ""))
			},
			want: "Error: Empty response from model",
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"m","choices":[]}`)
			},
			want: "Error: No response generated",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.handler)
			text, err := svc.ChatCompletion(context.Background(), &ChatCompletionInput{Prompt: "hi"})
			assert.Error(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestService_ChatCompletion_StatusError(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	text, err := svc.ChatCompletion(context.Background(), &ChatCompletionInput{Prompt: "hi"})
	assert.Error(t, err)
	assert.Contains(t, text, "Error: LM Studio returned status code 500:")
}

func TestService_MultiAgentQuery(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload.Model == "model-b" {
			http.Error(w, `{"error":{"message":"crashed"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(payload.Model, "answer from "+payload.Model))
	}))

	text, err := svc.MultiAgentQuery(context.Background(), &MultiAgentQueryInput{
		Prompt: "hello",
		Models: []string{"model-a", "model-b"},
	})
	require.NoError(t, err)

	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, true, decoded["model-a"]["success"])
	assert.Equal(t, "answer from model-a", decoded["model-a"]["content"])
	assert.Equal(t, false, decoded["model-b"]["success"])
	assert.Contains(t, decoded["model-b"]["error"], "HTTP 500")
}

func TestService_MultiAgentQuery_EmptyModels(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty model list")
	}))
	text, err := svc.MultiAgentQuery(context.Background(), &MultiAgentQueryInput{Prompt: "hello"})
	assert.Error(t, err)
	assert.JSONEq(t, `{"error":"No models specified"}`, text)
}

func TestTextResult(t *testing.T) {
	result := textResult("hello")
	require.Len(t, result.Content, 1)
	elem, ok := result.Content[0].(schema.TextContent)
	require.True(t, ok)
	assert.Equal(t, "text", elem.Type)
	assert.Equal(t, "hello", elem.Text)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, defaultTemperature, temperatureOrDefault(nil))
	assert.Equal(t, int64(defaultMaxTokens), maxTokensOrDefault(nil))

	temp := 0.0
	assert.Equal(t, 0.0, temperatureOrDefault(&temp))
	tokens := int64(5)
	assert.Equal(t, int64(5), maxTokensOrDefault(&tokens))
}
