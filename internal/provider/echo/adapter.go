// Package echo provides a chat client that echoes back the prompt input.
// It implements the domain.ChatClient interface without external API calls,
// giving deterministic responses for development and tests.
package echo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
	"github.com/davidbz/kiln/internal/streaming"
)

const (
	providerName  = "echo"
	modelName     = "echo-1"
	chunkDelay    = 10 * time.Millisecond
	streamTimeout = 5 * time.Second
)

// Client implements the domain.ChatClient interface for echo testing.
type Client struct {
	priority  int
	expertise []string
}

// NewClient creates a new echo client. No configuration is required; the
// client operates entirely in-memory.
func NewClient() *Client {
	return &Client{}
}

// WithRouting sets the priority and expertise tags the router sees for this
// client and returns it for chaining.
func (c *Client) WithRouting(priority int, expertise []string) *Client {
	c.priority = priority
	c.expertise = append([]string(nil), expertise...)
	return c
}

// Call echoes the prompt input back as an assistant message.
func (c *Client) Call(ctx context.Context, prompt *domain.Prompt) (*domain.Message, error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}

	observability.FromContext(ctx).Debug("echoing request")

	message := domain.AssistantMessage(prompt.Input)
	return &message, nil
}

// CallAsync wraps Call in a single-result future.
func (c *Client) CallAsync(ctx context.Context, prompt *domain.Prompt) <-chan domain.CallResult {
	results := make(chan domain.CallResult, 1)

	go func() {
		defer close(results)

		message, err := c.Call(ctx, prompt)
		results <- domain.CallResult{Message: message, Err: err}
	}()

	return results
}

// Stream echoes the prompt input word by word through a streaming session,
// exercising the same aggregation path real providers use.
func (c *Client) Stream(ctx context.Context, prompt *domain.Prompt) ([]domain.Message, error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}

	observability.FromContext(ctx).Debug("streaming echo request")

	session := streaming.NewSession()

	go func() {
		words := strings.Fields(prompt.Input)
		for i, word := range words {
			select {
			case <-ctx.Done():
				session.Fail(ctx.Err())
				return
			default:
			}

			delta := word
			if i < len(words)-1 {
				delta += " "
			}
			session.Push(delta)
			time.Sleep(chunkDelay)
		}

		session.Complete()
	}()

	return session.Wait(ctx, streamTimeout), nil
}

// Provider returns the provider identifier.
func (c *Client) Provider() string {
	return providerName
}

// Model returns the model name.
func (c *Client) Model() string {
	return modelName
}

// Config returns a snapshot of the client configuration.
func (c *Client) Config() map[string]any {
	return map[string]any{
		"provider":     providerName,
		"model":        modelName,
		"endpoint":     "in-memory",
		"priority":     c.priority,
		"expertise":    append([]string(nil), c.expertise...),
		"capabilities": []string{},
	}
}
