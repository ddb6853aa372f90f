package dashscope

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client wraps the HTTP client for DashScope text-generation calls.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient creates a new DashScope HTTP client.
func NewHTTPClient(cfg Config) *Client {
	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// DashScope API request/response structures.
type generationRequest struct {
	Model      string               `json:"model"`
	Input      generationInput      `json:"input"`
	Parameters generationParameters `json:"parameters,omitempty"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generationParameters struct {
	Temperature       float64 `json:"temperature,omitempty"`
	MaxTokens         int     `json:"max_tokens,omitempty"`
	IncrementalOutput bool    `json:"incremental_output,omitempty"`
}

// generationResponse is the DashScope envelope: the text lives under
// output.text, unlike the choices/delta nesting used by OpenAI-shaped APIs.
type generationResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// StreamEvent is a single already-unwrapped event from the streaming API.
type StreamEvent struct {
	Delta string
	Done  bool
	Err   error
}

// Complete sends a non-streaming generation request.
func (c *Client) Complete(ctx context.Context, req generationRequest) (*generationResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("API key is not configured")
	}

	resp, err := c.execute(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var genResp generationResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&genResp); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if genResp.Code != "" {
		return nil, fmt.Errorf("API returned error %s: %s", genResp.Code, genResp.Message)
	}

	return &genResp, nil
}

// Stream sends a streaming generation request. Events are delivered in send
// order on the returned channel, which is closed after the terminal event.
func (c *Client) Stream(ctx context.Context, req generationRequest) (<-chan StreamEvent, error) {
	if c.apiKey == "" {
		return nil, errors.New("API key is not configured")
	}

	req.Parameters.IncrementalOutput = true

	//nolint:bodyclose // Response body is closed in processStream goroutine
	resp, err := c.execute(ctx, req, true)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent)
	go c.processStream(resp, events)

	return events, nil
}

// execute creates and sends the HTTP request.
func (c *Client) execute(ctx context.Context, req generationRequest, stream bool) (*http.Response, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("X-DashScope-SSE", "enable")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// processStream reads server-sent events and forwards the text deltas.
func (c *Client) processStream(resp *http.Response, events chan<- StreamEvent) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event generationResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("failed to decode stream event: %w", err)}
			return
		}

		if event.Code != "" {
			events <- StreamEvent{Err: fmt.Errorf("stream error %s: %s", event.Code, event.Message)}
			return
		}

		done := event.Output.FinishReason != "" && event.Output.FinishReason != "null"
		events <- StreamEvent{Delta: event.Output.Text, Done: done}

		if done {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		events <- StreamEvent{Err: fmt.Errorf("stream read failed: %w", err)}
		return
	}

	events <- StreamEvent{Done: true}
}
