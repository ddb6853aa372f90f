// Package redis implements the conversation history store on Redis. Each
// session maps to a list of JSON-encoded messages with a sliding TTL.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
)

const keyPrefix = "kiln:history:"

// Store implements the domain.HistoryStore interface.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Redis-backed history store. A non-positive ttl disables
// expiry.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

// Append pushes messages onto the session's history list and refreshes the
// TTL.
func (s *Store) Append(ctx context.Context, sessionID string, messages ...domain.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	values := make([]any, 0, len(messages))
	for _, msg := range messages {
		encoded, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		values = append(values, encoded)
	}

	key := keyPrefix + sessionID
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			observability.FromContext(ctx).Warn("failed to refresh history TTL",
				observability.String("session_id", sessionID),
				observability.Error(err),
			)
		}
	}

	return nil
}

// History returns up to limit most recent messages for the session, oldest
// first. A non-positive limit returns the whole history.
func (s *Store) History(ctx context.Context, sessionID string, limit int64) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	entries, err := s.client.LRange(ctx, keyPrefix+sessionID, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if len(entries) == 0 {
		return nil, domain.ErrHistoryNotFound
	}

	messages := make([]domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Clear deletes the session's history.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	if err := s.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	return nil
}
