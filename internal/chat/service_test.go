package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/kiln/internal/chat"
	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/provider/registry"
	"github.com/davidbz/kiln/internal/routing"
)

// scriptedClient is a domain.ChatClient whose calls can be made to fail.
type scriptedClient struct {
	provider string
	reply    string
	callErr  error
}

func (c *scriptedClient) Call(_ context.Context, _ *domain.Prompt) (*domain.Message, error) {
	if c.callErr != nil {
		return nil, c.callErr
	}
	msg := domain.AssistantMessage(c.reply)
	return &msg, nil
}

func (c *scriptedClient) CallAsync(ctx context.Context, prompt *domain.Prompt) <-chan domain.CallResult {
	results := make(chan domain.CallResult, 1)
	msg, err := c.Call(ctx, prompt)
	results <- domain.CallResult{Message: msg, Err: err}
	close(results)
	return results
}

func (c *scriptedClient) Stream(ctx context.Context, prompt *domain.Prompt) ([]domain.Message, error) {
	msg, err := c.Call(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return []domain.Message{*msg}, nil
}

func (c *scriptedClient) Provider() string { return c.provider }

func (c *scriptedClient) Model() string { return c.provider + "-model" }

func (c *scriptedClient) Config() map[string]any {
	return map[string]any{"provider": c.provider, "model": c.Model(), "endpoint": ""}
}

// memoryStore is an in-memory domain.HistoryStore.
type memoryStore struct {
	sessions map[string][]domain.Message
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string][]domain.Message)}
}

func (m *memoryStore) Append(_ context.Context, sessionID string, messages ...domain.Message) error {
	m.sessions[sessionID] = append(m.sessions[sessionID], messages...)
	return nil
}

func (m *memoryStore) History(_ context.Context, sessionID string, _ int64) ([]domain.Message, error) {
	history, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrHistoryNotFound
	}
	return history, nil
}

func (m *memoryStore) Clear(_ context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

func newService(t *testing.T, primary, secondary *scriptedClient, store domain.HistoryStore) *chat.Service {
	t.Helper()

	reg := registry.NewRegistry()
	strategy := routing.NewKeywordStrategy(primary.provider)
	router := routing.NewExpertRouter(reg, strategy)

	router.RegisterClient(primary.provider, primary)
	router.SetPriority(primary.provider, 100)
	if secondary != nil {
		router.RegisterClient(secondary.provider, secondary)
		router.SetPriority(secondary.provider, 50)
	}

	return chat.NewService(router, store, nil)
}

func TestService_Chat(t *testing.T) {
	t.Run("should return the primary provider's reply", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", reply: "from A"}
		service := newService(t, primary, nil, nil)

		reply, err := service.Chat(context.Background(), "", "hello", nil)

		require.NoError(t, err)
		require.Equal(t, "from A", reply.Content)
	})

	t.Run("should retry once on the fallback client", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", callErr: errors.New("upstream down")}
		secondary := &scriptedClient{provider: "B", reply: "from B"}
		service := newService(t, primary, secondary, nil)

		reply, err := service.Chat(context.Background(), "", "hello", nil)

		require.NoError(t, err)
		require.Equal(t, "from B", reply.Content)
	})

	t.Run("should propagate the fallback failure", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", callErr: errors.New("upstream down")}
		secondary := &scriptedClient{provider: "B", callErr: errors.New("also down")}
		service := newService(t, primary, secondary, nil)

		reply, err := service.Chat(context.Background(), "", "hello", nil)

		require.Error(t, err)
		require.Nil(t, reply)
		require.Contains(t, err.Error(), "fallback call failed")
	})

	t.Run("should reject empty input", func(t *testing.T) {
		service := newService(t, &scriptedClient{provider: "A"}, nil, nil)

		reply, err := service.Chat(context.Background(), "", "", nil)

		require.Error(t, err)
		require.Nil(t, reply)
	})

	t.Run("should honor a forced provider", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", reply: "from A"}
		secondary := &scriptedClient{provider: "B", reply: "from B"}
		service := newService(t, primary, secondary, nil)

		reply, err := service.Chat(context.Background(), "", "hello",
			&domain.RoutingContext{ForcedProvider: "B"})

		require.NoError(t, err)
		require.Equal(t, "from B", reply.Content)
	})

	t.Run("should persist both turns of the conversation", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", reply: "hi back"}
		store := newMemoryStore()
		service := newService(t, primary, nil, store)

		_, err := service.Chat(context.Background(), "session-1", "hi", nil)
		require.NoError(t, err)

		history, err := service.History(context.Background(), "session-1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, domain.UserMessage("hi"), history[0])
		require.Equal(t, domain.AssistantMessage("hi back"), history[1])
	})
}

func TestService_StreamChat(t *testing.T) {
	t.Run("should return the aggregated stream result", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", reply: "streamed reply"}
		service := newService(t, primary, nil, nil)

		messages, err := service.StreamChat(context.Background(), "", "hello", nil)

		require.NoError(t, err)
		require.Len(t, messages, 1)
		require.Equal(t, "streamed reply", messages[0].Content)
	})

	t.Run("should retry a failed stream on the fallback client", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", callErr: errors.New("stream refused")}
		secondary := &scriptedClient{provider: "B", reply: "from B"}
		service := newService(t, primary, secondary, nil)

		messages, err := service.StreamChat(context.Background(), "", "hello", nil)

		require.NoError(t, err)
		require.Len(t, messages, 1)
		require.Equal(t, "from B", messages[0].Content)
	})

	t.Run("should persist the final snapshot", func(t *testing.T) {
		primary := &scriptedClient{provider: "A", reply: "final snapshot"}
		store := newMemoryStore()
		service := newService(t, primary, nil, store)

		_, err := service.StreamChat(context.Background(), "session-2", "hello", nil)
		require.NoError(t, err)

		history, err := service.History(context.Background(), "session-2")
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, "final snapshot", history[1].Content)
	})
}

func TestService_History(t *testing.T) {
	t.Run("should report missing history without a store", func(t *testing.T) {
		service := newService(t, &scriptedClient{provider: "A"}, nil, nil)

		history, err := service.History(context.Background(), "any")

		require.ErrorIs(t, err, domain.ErrHistoryNotFound)
		require.Nil(t, history)
	})
}
