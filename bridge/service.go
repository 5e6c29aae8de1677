// Package bridge exposes the LM Studio client as MCP tools. Every tool
// converts backend and validation failures into descriptive text results at
// this boundary; a tool invocation never surfaces a protocol fault.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/samscarrow/lmstudio-bridge/lmstudio"
	"github.com/samscarrow/lmstudio-bridge/logging"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

// Service implements the bridge tool surface on top of the LM Studio client.
type Service struct {
	client *lmstudio.Client
	log    *logging.BridgeLogger
}

// New creates a bridge service.
func New(client *lmstudio.Client, log *logging.BridgeLogger) *Service {
	if log == nil {
		log = logging.NewLogger(nil)
	}
	return &Service{client: client, log: log}
}

// EmptyInput is the argument shape of tools taking no parameters.
type EmptyInput struct{}

// ChatCompletionInput are the chat_completion tool arguments.
type ChatCompletionInput struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int64   `json:"max_tokens,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// MultiAgentQueryInput are the multi_agent_query tool arguments.
type MultiAgentQueryInput struct {
	Prompt       string   `json:"prompt"`
	Models       []string `json:"models"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int64   `json:"max_tokens,omitempty"`
}

// TextOutput is the output shape shared by all bridge tools.
type TextOutput struct {
	Text string `json:"text"`
}

// HealthCheck reports whether the LM Studio API is accessible. The returned
// error carries the underlying cause for logging; the text is always the
// caller-facing result.
func (s *Service) HealthCheck(ctx context.Context) (string, error) {
	err := s.client.Health(ctx)
	if err == nil {
		return "LM Studio API is running and accessible.", nil
	}
	var statusErr *lmstudio.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("LM Studio API returned status code %d.", statusErr.Code), err
	}
	return fmt.Sprintf("Error connecting to LM Studio API: %v", err), err
}

// ListModels returns a formatted list of the models available in LM Studio.
func (s *Service) ListModels(ctx context.Context) (string, error) {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		var statusErr *lmstudio.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Sprintf("Failed to fetch models. Status code: %d", statusErr.Code), err
		}
		return fmt.Sprintf("Error listing models: %v", err), err
	}
	if len(models) == 0 {
		return "No models found in LM Studio.", nil
	}
	var b strings.Builder
	b.WriteString("Available models in LM Studio:\n\n")
	for _, id := range models {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	return b.String(), nil
}

// CurrentModel reports the model currently loaded in LM Studio.
func (s *Service) CurrentModel(ctx context.Context) (string, error) {
	model, err := s.client.CurrentModel(ctx)
	if err != nil {
		var statusErr *lmstudio.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Sprintf("Failed to identify current model. Status code: %d", statusErr.Code), err
		}
		return fmt.Sprintf("Error identifying current model: %v", err), err
	}
	if model == "" {
		model = "Unknown"
	}
	return fmt.Sprintf("Currently loaded model: %s", model), nil
}

// ChatCompletion generates one completion and returns its text, or a single
// descriptive error string for any failure condition.
func (s *Service) ChatCompletion(ctx context.Context, in *ChatCompletionInput) (string, error) {
	completion, err := s.client.ChatCompletion(ctx, lmstudio.ChatRequest{
		Prompt:       in.Prompt,
		SystemPrompt: in.SystemPrompt,
		Temperature:  temperatureOrDefault(in.Temperature),
		MaxTokens:    maxTokensOrDefault(in.MaxTokens),
		Model:        in.Model,
	})
	if err == nil {
		return completion.Content, nil
	}
	var statusErr *lmstudio.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("Error: LM Studio returned status code %d: %s", statusErr.Code, statusErr.Body), err
	case errors.Is(err, lmstudio.ErrNoChoices):
		return "Error: No response generated", err
	case errors.Is(err, lmstudio.ErrEmptyResponse):
		return "Error: Empty response from model", err
	default:
		return fmt.Sprintf("Error generating completion: %v", err), err
	}
}

// MultiAgentQuery fans the prompt out to every requested model and returns
// the JSON aggregate. Caller errors come back as a JSON error object, not as
// an empty aggregate.
func (s *Service) MultiAgentQuery(ctx context.Context, in *MultiAgentQueryInput) (string, error) {
	aggregate, err := s.client.MultiQuery(ctx, lmstudio.MultiRequest{
		Prompt:       in.Prompt,
		Models:       in.Models,
		SystemPrompt: in.SystemPrompt,
		Temperature:  temperatureOrDefault(in.Temperature),
		MaxTokens:    maxTokensOrDefault(in.MaxTokens),
	})
	if err != nil {
		if errors.Is(err, lmstudio.ErrNoModels) {
			return errorJSON("No models specified"), err
		}
		return errorJSON(fmt.Sprintf("Multi-agent query failed: %v", err)), err
	}
	text, err := aggregate.JSON()
	if err != nil {
		return errorJSON(fmt.Sprintf("Multi-agent query failed: %v", err)), err
	}
	return text, nil
}

// RegisterTools registers the five bridge tools on the MCP handler.
func (s *Service) RegisterTools(h *protoserver.DefaultHandler) error {
	if err := protoserver.RegisterTool[*EmptyInput, *TextOutput](h.Registry, "health_check",
		"Check if the LM Studio API is accessible",
		func(ctx context.Context, _ *EmptyInput) (*schema.CallToolResult, *jsonrpc.Error) {
			return s.invoke(ctx, "health_check", func(ctx context.Context) (string, error) {
				return s.HealthCheck(ctx)
			})
		}); err != nil {
		return err
	}
	if err := protoserver.RegisterTool[*EmptyInput, *TextOutput](h.Registry, "list_models",
		"List all models available in LM Studio",
		func(ctx context.Context, _ *EmptyInput) (*schema.CallToolResult, *jsonrpc.Error) {
			return s.invoke(ctx, "list_models", func(ctx context.Context) (string, error) {
				return s.ListModels(ctx)
			})
		}); err != nil {
		return err
	}
	if err := protoserver.RegisterTool[*EmptyInput, *TextOutput](h.Registry, "get_current_model",
		"Get the model currently loaded in LM Studio",
		func(ctx context.Context, _ *EmptyInput) (*schema.CallToolResult, *jsonrpc.Error) {
			return s.invoke(ctx, "get_current_model", func(ctx context.Context) (string, error) {
				return s.CurrentModel(ctx)
			})
		}); err != nil {
		return err
	}
	if err := protoserver.RegisterTool[*ChatCompletionInput, *TextOutput](h.Registry, "chat_completion",
		"Generate a completion from the current LM Studio model",
		func(ctx context.Context, in *ChatCompletionInput) (*schema.CallToolResult, *jsonrpc.Error) {
			return s.invoke(ctx, "chat_completion", func(ctx context.Context) (string, error) {
				return s.ChatCompletion(ctx, in)
			})
		}); err != nil {
		return err
	}
	if err := protoserver.RegisterTool[*MultiAgentQueryInput, *TextOutput](h.Registry, "multi_agent_query",
		"Query multiple models concurrently with the same prompt",
		func(ctx context.Context, in *MultiAgentQueryInput) (*schema.CallToolResult, *jsonrpc.Error) {
			return s.invoke(ctx, "multi_agent_query", func(ctx context.Context) (string, error) {
				return s.MultiAgentQuery(ctx, in)
			})
		}); err != nil {
		return err
	}
	return nil
}

// invoke runs one tool call with an invocation id and call telemetry, and
// packages the display text as a tool result.
func (s *Service) invoke(ctx context.Context, tool string, fn func(ctx context.Context) (string, error)) (*schema.CallToolResult, *jsonrpc.Error) {
	log := s.log.WithInvocation(uuid.NewString())
	start := time.Now()
	text, err := fn(ctx)
	log.LogToolCall(tool, time.Since(start), err == nil, err)
	return textResult(text), nil
}

func textResult(text string) *schema.CallToolResult {
	return &schema.CallToolResult{
		Content: []schema.CallToolResultContentElem{schema.TextContent{Type: "text", Text: text}},
	}
}

func errorJSON(message string) string {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, message)
	}
	return string(data)
}

func temperatureOrDefault(t *float64) float64 {
	if t == nil {
		return defaultTemperature
	}
	return *t
}

func maxTokensOrDefault(n *int64) int64 {
	if n == nil {
		return defaultMaxTokens
	}
	return *n
}
