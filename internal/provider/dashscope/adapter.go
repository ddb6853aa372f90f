// Package dashscope provides a chat client adapter for the Alibaba Cloud
// DashScope text-generation API. The vendor nests response text under
// output.text rather than the choices/delta shape used by OpenAI; that
// difference is handled entirely inside this package.
package dashscope

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
	"github.com/davidbz/kiln/internal/streaming"
)

const providerName = "dashscope"

// Adapter implements the domain.ChatClient interface for DashScope.
type Adapter struct {
	client *Client
	cfg    Config
}

// NewAdapter creates a new DashScope chat client.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("DashScope API key is required")
	}

	return &Adapter{
		client: NewHTTPClient(cfg),
		cfg:    cfg,
	}, nil
}

// Call sends a prompt and blocks until the full response is available.
func (a *Adapter) Call(ctx context.Context, prompt *domain.Prompt) (*domain.Message, error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling DashScope API")

	resp, err := a.client.Complete(ctx, a.toRequest(prompt))
	if err != nil {
		logger.Error("DashScope API call failed", observability.Error(err))
		return nil, fmt.Errorf("DashScope API call failed: %w", err)
	}

	logger.Debug("DashScope API call succeeded",
		observability.Int("input_tokens", resp.Usage.InputTokens),
		observability.Int("output_tokens", resp.Usage.OutputTokens),
	)

	message := domain.AssistantMessage(resp.Output.Text)
	return &message, nil
}

// CallAsync wraps Call in a future bounded by the configured timeout.
func (a *Adapter) CallAsync(ctx context.Context, prompt *domain.Prompt) <-chan domain.CallResult {
	results := make(chan domain.CallResult, 1)

	go func() {
		defer close(results)

		callCtx, cancel := context.WithTimeout(ctx, a.callTimeout())
		defer cancel()

		message, err := a.Call(callCtx, prompt)
		results <- domain.CallResult{Message: message, Err: err}
	}()

	return results
}

// Stream sends a prompt over the SSE streaming API and aggregates the deltas
// into a single final message.
func (a *Adapter) Stream(ctx context.Context, prompt *domain.Prompt) ([]domain.Message, error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling DashScope streaming API")

	events, err := a.client.Stream(ctx, a.toRequest(prompt))
	if err != nil {
		logger.Error("DashScope stream failed to open", observability.Error(err))
		return nil, fmt.Errorf("DashScope stream failed: %w", err)
	}

	session := streaming.NewSession()

	go func() {
		for event := range events {
			if event.Err != nil {
				logger.Error("DashScope stream error", observability.Error(event.Err))
				session.Fail(event.Err)
				return
			}

			session.Push(event.Delta)

			if event.Done {
				session.Complete()
				return
			}
		}

		session.Complete()
	}()

	return session.Wait(ctx, a.callTimeout()), nil
}

// Provider returns the provider identifier.
func (a *Adapter) Provider() string {
	return providerName
}

// Model returns the configured model name.
func (a *Adapter) Model() string {
	return a.cfg.Model
}

// Config returns a snapshot of the client configuration.
func (a *Adapter) Config() map[string]any {
	return map[string]any{
		"provider":     providerName,
		"model":        a.cfg.Model,
		"endpoint":     a.cfg.Endpoint,
		"temperature":  a.cfg.Temperature,
		"max_tokens":   a.cfg.MaxTokens,
		"timeout":      a.cfg.Timeout,
		"max_retries":  a.cfg.MaxRetries,
		"priority":     a.cfg.Priority,
		"expertise":    append([]string(nil), a.cfg.Expertise...),
		"capabilities": append([]string(nil), a.cfg.Capabilities...),
	}
}

// callTimeout returns the configured timeout as a duration.
func (a *Adapter) callTimeout() time.Duration {
	if a.cfg.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.cfg.Timeout) * time.Second
}

// toRequest converts a domain prompt to the DashScope request shape.
func (a *Adapter) toRequest(prompt *domain.Prompt) generationRequest {
	domainMessages := prompt.Messages()

	messages := make([]generationMessage, len(domainMessages))
	for i, msg := range domainMessages {
		messages[i] = generationMessage{Role: msg.Role, Content: msg.Content}
	}

	return generationRequest{
		Model: a.cfg.Model,
		Input: generationInput{Messages: messages},
		Parameters: generationParameters{
			Temperature: a.cfg.Temperature,
			MaxTokens:   a.cfg.MaxTokens,
		},
	}
}
