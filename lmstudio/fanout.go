package lmstudio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// UnknownModelKey is the sentinel aggregate key for an outcome that cannot be
// attributed to a requested model identifier.
const UnknownModelKey = "unknown"

// MultiRequest fans one prompt out to several models.
type MultiRequest struct {
	Prompt       string
	Models       []string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int64
}

// Outcome is the tagged per-model result of a fan-out query: either a
// completion with its token usage or a failure description.
type Outcome struct {
	Success bool
	Content string
	Tokens  int
	Err     string
}

// MarshalJSON emits the success and failure wire shapes: successes carry
// content and tokens, failures carry the error text.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Content string `json:"content"`
			Tokens  int    `json:"tokens"`
		}{true, o.Content, o.Tokens})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, o.Err})
}

// UnmarshalJSON accepts both wire shapes produced by MarshalJSON.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success bool   `json:"success"`
		Content string `json:"content"`
		Tokens  int    `json:"tokens"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Outcome{Success: raw.Success, Content: raw.Content, Tokens: raw.Tokens, Err: raw.Error}
	return nil
}

// Aggregate maps each requested model identifier (plus possibly the unknown
// sentinel) to its outcome.
type Aggregate map[string]Outcome

// JSON renders the aggregate as indented JSON for display.
func (a Aggregate) JSON() (string, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Successful counts succeeded outcomes.
func (a Aggregate) Successful() int {
	n := 0
	for _, o := range a {
		if o.Success {
			n++
		}
	}
	return n
}

// MultiQuery queries every model concurrently with identical message content
// and collects all outcomes. One goroutine is launched per model and a
// join-all barrier waits for every branch to finish; a failing branch is
// recorded as that model's failure and never aborts or cancels its siblings.
// An empty model list is a caller error reported before any request is made.
// No retries: one failed attempt per model is final for the invocation.
func (c *Client) MultiQuery(ctx context.Context, req MultiRequest) (Aggregate, error) {
	if len(req.Models) == 0 {
		return nil, ErrNoModels
	}
	c.log.Info("sending concurrent requests to %d models", len(req.Models))

	type keyed struct {
		model   string
		outcome Outcome
	}
	results := make(chan keyed, len(req.Models))

	var wg sync.WaitGroup
	for _, model := range req.Models {
		wg.Add(1)
		go func(model string) {
			defer wg.Done()
			// A panicking branch must not take the aggregate down with it.
			defer func() {
				if r := recover(); r != nil {
					results <- keyed{model, Outcome{Err: fmt.Sprintf("panic: %v", r)}}
				}
			}()
			completion, err := c.complete(ctx, ChatRequest{
				Prompt:       req.Prompt,
				SystemPrompt: req.SystemPrompt,
				Temperature:  req.Temperature,
				MaxTokens:    req.MaxTokens,
				Model:        model,
			})
			if err != nil {
				results <- keyed{model, Outcome{Err: err.Error()}}
				return
			}
			results <- keyed{model, Outcome{Success: true, Content: completion.Content, Tokens: completion.Tokens}}
		}(model)
	}
	wg.Wait()
	close(results)

	aggregate := make(Aggregate, len(req.Models))
	for r := range results {
		key := r.model
		if key == "" {
			key = UnknownModelKey
		}
		aggregate[key] = r.outcome
	}
	c.log.Info("completed concurrent requests: %d/%d successful", aggregate.Successful(), len(req.Models))
	return aggregate, nil
}
