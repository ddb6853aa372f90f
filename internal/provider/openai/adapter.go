// Package openai provides a chat client adapter for the OpenAI API using the
// official SDK. It implements the domain.ChatClient interface and keeps the
// vendor envelope (choices[0].delta.content for stream chunks) fully inside
// this package; the rest of the system only ever sees domain messages.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
	"github.com/davidbz/kiln/internal/streaming"
)

const providerName = "openai"

// Client implements the domain.ChatClient interface for OpenAI.
type Client struct {
	api openai.Client
	cfg Config
}

// NewClient creates a new OpenAI chat client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}

	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Client{
		api: openai.NewClient(opts...),
		cfg: cfg,
	}, nil
}

// Call sends a prompt and blocks until the full response is available.
func (c *Client) Call(ctx context.Context, prompt *domain.Prompt) (*domain.Message, error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI API")

	resp, err := c.api.Chat.Completions.New(ctx, c.toSDKParams(prompt))
	if err != nil {
		logger.Error("OpenAI API call failed", observability.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	logger.Debug("OpenAI API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	message := domain.AssistantMessage(content)
	return &message, nil
}

// CallAsync wraps Call in a future bounded by the configured timeout. The
// outer timeout is authoritative: when it is shorter than the streaming wait
// inside a provider, the future fires first and the inner work is abandoned.
func (c *Client) CallAsync(ctx context.Context, prompt *domain.Prompt) <-chan domain.CallResult {
	results := make(chan domain.CallResult, 1)

	go func() {
		defer close(results)

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout())
		defer cancel()

		message, err := c.Call(callCtx, prompt)
		results <- domain.CallResult{Message: message, Err: err}
	}()

	return results
}

// Stream sends a prompt over the SDK streaming API and aggregates the chunk
// deltas into a single final message. The returned slice holds the latest
// snapshot, or nothing on total failure or timeout.
func (c *Client) Stream(ctx context.Context, prompt *domain.Prompt) ([]domain.Message, error) {
	if prompt == nil {
		return nil, errors.New("prompt cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI streaming API")

	stream := c.api.Chat.Completions.NewStreaming(ctx, c.toSDKParams(prompt))
	session := streaming.NewSession()

	go func() {
		defer logger.Debug("OpenAI stream consumer finished")

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			session.Push(chunk.Choices[0].Delta.Content)

			if chunk.Choices[0].FinishReason != "" {
				session.Complete()
				return
			}
		}

		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			logger.Error("OpenAI stream error", observability.Error(err))
			session.Fail(err)
			return
		}

		session.Complete()
	}()

	return session.Wait(ctx, c.callTimeout()), nil
}

// Provider returns the provider identifier.
func (c *Client) Provider() string {
	return providerName
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Config returns a snapshot of the client configuration.
func (c *Client) Config() map[string]any {
	return map[string]any{
		"provider":     providerName,
		"model":        c.cfg.Model,
		"endpoint":     c.cfg.BaseURL,
		"temperature":  c.cfg.Temperature,
		"max_tokens":   c.cfg.MaxTokens,
		"timeout":      c.cfg.Timeout,
		"max_retries":  c.cfg.MaxRetries,
		"priority":     c.cfg.Priority,
		"expertise":    append([]string(nil), c.cfg.Expertise...),
		"capabilities": append([]string(nil), c.cfg.Capabilities...),
	}
}

// callTimeout returns the configured timeout as a duration.
func (c *Client) callTimeout() time.Duration {
	if c.cfg.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.cfg.Timeout) * time.Second
}

// toSDKParams converts a domain prompt to SDK ChatCompletionNewParams.
func (c *Client) toSDKParams(prompt *domain.Prompt) openai.ChatCompletionNewParams {
	domainMessages := prompt.Messages()

	messages := make([]openai.ChatCompletionMessageParamUnion, len(domainMessages))
	for i, msg := range domainMessages {
		switch msg.Role {
		case domain.RoleAssistant:
			messages[i] = openai.AssistantMessage(msg.Content)
		case domain.RoleSystem:
			messages[i] = openai.SystemMessage(msg.Content)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: messages,
	}

	if c.cfg.Temperature > 0 {
		params.Temperature = openai.Float(c.cfg.Temperature)
	}

	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}

	return params
}
