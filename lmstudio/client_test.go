package lmstudio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatPayload mirrors the request body the backend receives.
type chatPayload struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int64   `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func writeChatResponse(w http.ResponseWriter, model, content string, usage bool) {
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
	}
	if usage {
		resp["usage"] = map[string]int{"prompt_tokens": 5, "completion_tokens": 37, "total_tokens": 42}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	pool := NewPool(PoolConfig{})
	t.Cleanup(pool.Close)
	return NewClient(pool, func(o *Options) { o.BaseURL = ts.URL })
}

func TestClient_Health(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	assert.NoError(t, client.Health(context.Background()))
}

func TestClient_Health_StatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	err := client.Health(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestClient_Health_Unreachable(t *testing.T) {
	pool := NewPool(PoolConfig{})
	t.Cleanup(pool.Close)
	client := NewClient(pool, func(o *Options) { o.BaseURL = "http://127.0.0.1:1/v1" })

	err := client.Health(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestClient_ListModels(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"qwen/qwen2.5-coder-14b","object":"model"},{"id":"mistralai/devstral-small","object":"model"}]}`)
	}))
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen/qwen2.5-coder-14b", "mistralai/devstral-small"}, models)
}

func TestClient_ListModels_Empty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestClient_CurrentModel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var payload chatPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Messages, 1)
		assert.Equal(t, "system", payload.Messages[0].Role)
		assert.Equal(t, int64(10), payload.MaxTokens)
		writeChatResponse(w, "qwen/qwen2.5-coder-14b", "I am Qwen", true)
	}))
	model, err := client.CurrentModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "qwen/qwen2.5-coder-14b", model)
}

func TestClient_ChatCompletion(t *testing.T) {
	var received chatPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeChatResponse(w, "test-model", "hello there", true)
	}))

	completion, err := client.ChatCompletion(context.Background(), ChatRequest{
		Prompt:       "say hello",
		SystemPrompt: "be brief",
		Temperature:  0.2,
		MaxTokens:    64,
		Model:        "test-model",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", completion.Content)
	assert.Equal(t, 42, completion.Tokens)
	assert.Equal(t, "test-model", completion.Model)

	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "be brief", received.Messages[0].Content)
	assert.Equal(t, "user", received.Messages[1].Role)
	assert.Equal(t, "say hello", received.Messages[1].Content)
	assert.Equal(t, "test-model", received.Model)
	assert.InDelta(t, 0.2, received.Temperature, 1e-9)
	assert.Equal(t, int64(64), received.MaxTokens)
}

func TestClient_ChatCompletion_NoSystemPrompt(t *testing.T) {
	var received chatPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeChatResponse(w, "test-model", "ok", true)
	}))

	_, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi", Temperature: 0.7})
	require.NoError(t, err)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
	// max tokens falls back to the default when unset
	assert.Equal(t, int64(1024), received.MaxTokens)
}

func TestClient_ChatCompletion_EmptyContent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "test-model", "", true)
	}))
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_ChatCompletion_NoChoices(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"m","choices":[]}`)
	}))
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestClient_ChatCompletion_StatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusNotFound)
	}))
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi"})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.LessOrEqual(t, len(statusErr.Body), maxErrorBody)
}

func TestClient_ChatCompletion_MissingUsage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChatResponse(w, "test-model", "content without usage", false)
	}))
	completion, err := client.ChatCompletion(context.Background(), ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 0, completion.Tokens)
}
