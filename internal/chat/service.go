// Package chat ties the router, conversation history and event bus together
// into the request-level orchestration: resolve a client, call it, retry once
// on the fallback chain, persist the turn.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
)

// historyLimit bounds how many stored messages are replayed into a prompt.
const historyLimit = 20

// Service orchestrates chat requests across providers.
type Service struct {
	router  domain.Router
	history domain.HistoryStore
	events  domain.EventPublisher
}

// NewService creates a new chat service (DI constructor). The history store
// may be nil, in which case chats are stateless.
func NewService(router domain.Router, history domain.HistoryStore, events domain.EventPublisher) *Service {
	return &Service{
		router:  router,
		history: history,
		events:  events,
	}
}

// Chat resolves the best client for the input, calls it and returns the
// reply. When the selected provider fails, the call is retried exactly once
// on the fallback client before the error propagates.
func (s *Service) Chat(
	ctx context.Context,
	sessionID string,
	input string,
	rctx *domain.RoutingContext,
) (*domain.Message, error) {
	if input == "" {
		return nil, errors.New("input cannot be empty")
	}

	client, err := s.router.SelectBestClient(input, rctx)
	if err != nil {
		return nil, fmt.Errorf("client selection failed: %w", err)
	}

	ctx = observability.WithProvider(ctx, client.Provider())
	ctx = observability.WithModel(ctx, client.Model())
	logger := observability.FromContext(ctx)

	prompt := s.buildPrompt(ctx, sessionID, input)

	reply, callErr := client.Call(ctx, prompt)
	if callErr != nil {
		logger.Warn("provider call failed, trying fallback",
			observability.String("provider", client.Provider()),
			observability.Error(callErr),
		)

		fallback, fbErr := s.router.FallbackClient(client.Provider())
		if fbErr != nil {
			return nil, fmt.Errorf("call failed with no fallback available: %w", callErr)
		}

		reply, callErr = fallback.Call(ctx, prompt)
		if callErr != nil {
			return nil, fmt.Errorf("fallback call failed: %w", callErr)
		}
		client = fallback
	}

	s.publish(ctx, "chat.completed", client, sessionID)
	s.persist(ctx, sessionID, domain.UserMessage(input), *reply)

	return reply, nil
}

// StreamChat resolves the best client for the input and performs a streaming
// call, returning the aggregated result. A stream that fails to open is
// retried once on the fallback client.
func (s *Service) StreamChat(
	ctx context.Context,
	sessionID string,
	input string,
	rctx *domain.RoutingContext,
) ([]domain.Message, error) {
	if input == "" {
		return nil, errors.New("input cannot be empty")
	}

	client, err := s.router.SelectBestClient(input, rctx)
	if err != nil {
		return nil, fmt.Errorf("client selection failed: %w", err)
	}

	ctx = observability.WithProvider(ctx, client.Provider())
	ctx = observability.WithModel(ctx, client.Model())
	logger := observability.FromContext(ctx)

	prompt := s.buildPrompt(ctx, sessionID, input)

	messages, streamErr := client.Stream(ctx, prompt)
	if streamErr != nil {
		logger.Warn("provider stream failed, trying fallback",
			observability.String("provider", client.Provider()),
			observability.Error(streamErr),
		)

		fallback, fbErr := s.router.FallbackClient(client.Provider())
		if fbErr != nil {
			return nil, fmt.Errorf("stream failed with no fallback available: %w", streamErr)
		}

		messages, streamErr = fallback.Stream(ctx, prompt)
		if streamErr != nil {
			return nil, fmt.Errorf("fallback stream failed: %w", streamErr)
		}
		client = fallback
	}

	s.publish(ctx, "chat.streamed", client, sessionID)

	if len(messages) > 0 {
		s.persist(ctx, sessionID, domain.UserMessage(input), messages[len(messages)-1])
	}

	return messages, nil
}

// History returns the stored conversation for a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if s.history == nil {
		return nil, domain.ErrHistoryNotFound
	}

	return s.history.History(ctx, sessionID, 0)
}

// buildPrompt assembles the prompt, replaying stored history when a session
// is given and a store is configured.
func (s *Service) buildPrompt(ctx context.Context, sessionID, input string) *domain.Prompt {
	prompt := &domain.Prompt{Input: input}

	if s.history == nil || sessionID == "" {
		return prompt
	}

	history, err := s.history.History(ctx, sessionID, historyLimit)
	if err != nil {
		if !errors.Is(err, domain.ErrHistoryNotFound) {
			observability.FromContext(ctx).Warn("failed to load history, continuing without it",
				observability.String("session_id", sessionID),
				observability.Error(err),
			)
		}
		return prompt
	}

	prompt.History = history
	return prompt
}

// persist stores a completed turn. Persistence failures are logged, never
// surfaced: losing history must not fail a successful chat.
func (s *Service) persist(ctx context.Context, sessionID string, messages ...domain.Message) {
	if s.history == nil || sessionID == "" {
		return
	}

	if err := s.history.Append(ctx, sessionID, messages...); err != nil {
		observability.FromContext(ctx).Warn("failed to persist history",
			observability.String("session_id", sessionID),
			observability.Error(err),
		)
	}
}

// publish emits a routing outcome event.
func (s *Service) publish(ctx context.Context, eventType string, client domain.ChatClient, sessionID string) {
	if s.events == nil {
		return
	}

	s.events.Publish(ctx, eventType, map[string]any{
		"provider":   client.Provider(),
		"model":      client.Model(),
		"session_id": sessionID,
	})
}
