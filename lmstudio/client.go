// Package lmstudio provides a client for the LM Studio OpenAI-compatible API.
// It wraps the official OpenAI SDK pointed at a local base URL, routes every
// request through a shared connection pool and adds the multi-model fan-out
// used by the bridge.
package lmstudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/samscarrow/lmstudio-bridge/logging"
)

// DefaultAPIBase is the LM Studio endpoint on a default local install.
const DefaultAPIBase = "http://localhost:1234/v1"

// maxErrorBody caps backend error detail carried into failure messages.
const maxErrorBody = 200

var (
	// ErrNoChoices indicates a well-formed response carrying no completion choices.
	ErrNoChoices = errors.New("no response generated")
	// ErrEmptyResponse indicates a completion whose content was empty.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrNoModels indicates a fan-out request without any model identifiers.
	ErrNoModels = errors.New("no models specified")
)

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// ChatRequest captures a normalized chat completion input: an optional system
// message followed by one user message, plus sampling controls.
type ChatRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
	Model        string
}

// Completion is the extracted result of a successful chat completion.
type Completion struct {
	Content string
	Model   string
	Tokens  int
}

// Options configure the LM Studio client.
type Options struct {
	BaseURL string
	Logger  logging.Logger
}

// Client talks to a local LM Studio instance. All requests share the pool's
// connections and timeouts.
type Client struct {
	api  openai.Client
	pool *Pool
	base string
	log  logging.Logger
}

// NewClient creates a client bound to the given pool.
func NewClient(pool *Pool, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL: DefaultAPIBase,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	api := openai.NewClient(
		option.WithBaseURL(opts.BaseURL),
		// LM Studio ignores credentials but the SDK requires a key to be set.
		option.WithAPIKey("lm-studio"),
		option.WithHTTPClient(pool.HTTPClient()),
		option.WithMaxRetries(0),
	)
	return &Client{api: api, pool: pool, base: opts.BaseURL, log: opts.Logger}
}

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string { return c.base }

// Health checks that the models endpoint answers. A non-success status is
// reported as a StatusError, anything else as a connectivity error.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.Models.List(ctx); err != nil {
		return wrapAPIError("health check", err)
	}
	return nil
}

// ListModels returns the identifiers of every model available in LM Studio.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.api.Models.List(ctx)
	if err != nil {
		return nil, wrapAPIError("list models", err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// CurrentModel probes the chat endpoint with a minimal request and returns the
// model identifier the backend reports having answered with.
func (c *Client) CurrentModel(ctx context.Context) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("What model are you?"),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(10),
	}
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapAPIError("current model", err)
	}
	return resp.Model, nil
}

// ChatCompletion generates a single completion. Beyond complete's error
// conditions it treats an empty content string as its own error.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*Completion, error) {
	completion, err := c.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if completion.Content == "" {
		return nil, ErrEmptyResponse
	}
	return completion, nil
}

// complete issues one chat completion request and extracts content and token
// usage. Token usage defaults to zero when the backend omits usage metadata.
func (c *Client) complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	c.log.Debug("sending chat completion request model=%s", req.Model)
	resp, err := c.api.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, wrapAPIError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Tokens:  int(resp.Usage.TotalTokens),
	}, nil
}

// buildParams assembles the request parameters: optional system message, the
// user prompt and sampling controls. The model override is only forwarded when
// set so the currently loaded model answers by default.
func (c *Client) buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(maxTokens),
	}
	if req.Model != "" {
		params.Model = req.Model
	}
	return params
}

// wrapAPIError classifies SDK errors into StatusError for non-success HTTP
// statuses and a wrapped connectivity error otherwise.
func wrapAPIError(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &StatusError{Code: apierr.StatusCode, Body: truncate(apierr.Error(), maxErrorBody)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
