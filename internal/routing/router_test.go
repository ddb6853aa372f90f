package routing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/provider/registry"
	"github.com/davidbz/kiln/internal/routing"
)

// mockClient is a minimal domain.ChatClient for router tests.
type mockClient struct {
	provider     string
	model        string
	capabilities []string
}

func (m *mockClient) Call(_ context.Context, _ *domain.Prompt) (*domain.Message, error) {
	msg := domain.AssistantMessage("ok")
	return &msg, nil
}

func (m *mockClient) CallAsync(_ context.Context, _ *domain.Prompt) <-chan domain.CallResult {
	ch := make(chan domain.CallResult, 1)
	close(ch)
	return ch
}

func (m *mockClient) Stream(_ context.Context, _ *domain.Prompt) ([]domain.Message, error) {
	return nil, nil
}

func (m *mockClient) Provider() string { return m.provider }

func (m *mockClient) Model() string { return m.model }

func (m *mockClient) Config() map[string]any {
	return map[string]any{
		"provider":     m.provider,
		"model":        m.model,
		"endpoint":     "",
		"capabilities": m.capabilities,
	}
}

// newRouter builds a router with providers A (priority 100, code) and
// B (priority 50, writing), mirroring the common two-provider setup.
func newRouter(t *testing.T) (*routing.ExpertRouter, *mockClient, *mockClient) {
	t.Helper()

	reg := registry.NewRegistry()
	strategy := routing.NewKeywordStrategy("A")
	router := routing.NewExpertRouter(reg, strategy)

	clientA := &mockClient{provider: "A", model: "model-a", capabilities: []string{"code"}}
	clientB := &mockClient{provider: "B", model: "model-b", capabilities: []string{"vision"}}

	router.RegisterClient("A", clientA)
	router.RegisterClient("B", clientB)
	router.SetPriority("A", 100)
	router.SetPriority("B", 50)
	router.SetExpertise("A", []string{"code"})
	router.SetExpertise("B", []string{"writing"})

	return router, clientA, clientB
}

func TestExpertRouter_DefaultClient(t *testing.T) {
	t.Run("should return the highest priority provider", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.DefaultClient()

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})

	t.Run("should break priority ties by lexicographic name", func(t *testing.T) {
		reg := registry.NewRegistry()
		router := routing.NewExpertRouter(reg, routing.NewKeywordStrategy("zeta"))
		router.RegisterClient("zeta", &mockClient{provider: "zeta"})
		router.RegisterClient("alpha", &mockClient{provider: "alpha"})

		client, err := router.DefaultClient()

		require.NoError(t, err)
		require.Equal(t, "alpha", client.Provider())
	})

	t.Run("should fail with ErrNoAvailableProvider on an empty registry", func(t *testing.T) {
		reg := registry.NewRegistry()
		router := routing.NewExpertRouter(reg, routing.NewKeywordStrategy("A"))

		client, err := router.DefaultClient()

		require.Nil(t, client)
		require.ErrorIs(t, err, domain.ErrNoAvailableProvider)
	})
}

func TestExpertRouter_SelectClient(t *testing.T) {
	t.Run("should return the requested provider", func(t *testing.T) {
		router, _, clientB := newRouter(t)

		client, err := router.SelectClient("B")

		require.NoError(t, err)
		require.Same(t, clientB, client)
	})

	t.Run("should substitute the default client for an unknown provider", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.SelectClient("unknown")

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})

	t.Run("should surface ErrNoAvailableProvider when nothing is registered", func(t *testing.T) {
		reg := registry.NewRegistry()
		router := routing.NewExpertRouter(reg, routing.NewKeywordStrategy("A"))

		_, err := router.SelectClient("unknown")

		require.ErrorIs(t, err, domain.ErrNoAvailableProvider)
	})
}

func TestExpertRouter_SelectClientByInput(t *testing.T) {
	t.Run("should route code input to the code expert", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.SelectClientByInput("please review this code snippet")

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})

	t.Run("should route writing input to the writing expert", func(t *testing.T) {
		router, _, clientB := newRouter(t)

		client, err := router.SelectClientByInput("help with creative writing style")

		require.NoError(t, err)
		require.Same(t, clientB, client)
	})
}

func TestExpertRouter_SelectBestClient(t *testing.T) {
	t.Run("should honor the forced provider unconditionally", func(t *testing.T) {
		router, _, clientB := newRouter(t)

		client, err := router.SelectBestClient("please review this code snippet",
			&domain.RoutingContext{ForcedProvider: "B"})

		require.NoError(t, err)
		require.Same(t, clientB, client)
	})

	t.Run("should match a capability requirement before content analysis", func(t *testing.T) {
		router, _, clientB := newRouter(t)

		client, err := router.SelectBestClient("describe this picture",
			&domain.RoutingContext{Requirement: "vision analysis"})

		require.NoError(t, err)
		require.Same(t, clientB, client)
	})

	t.Run("should fall through to content analysis when no capability matches", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.SelectBestClient("please review this code snippet",
			&domain.RoutingContext{Requirement: "audio transcription"})

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})

	t.Run("should route by input with a nil context", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.SelectBestClient("please review this code snippet", nil)

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})
}

func TestExpertRouter_FallbackClient(t *testing.T) {
	t.Run("should never return the excluded provider", func(t *testing.T) {
		router, _, clientB := newRouter(t)

		client, err := router.FallbackClient("A")

		require.NoError(t, err)
		require.Same(t, clientB, client)
	})

	t.Run("should pick the highest priority alternative", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.FallbackClient("B")

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})

	t.Run("should fall back to the default client when nothing else remains", func(t *testing.T) {
		reg := registry.NewRegistry()
		router := routing.NewExpertRouter(reg, routing.NewKeywordStrategy("A"))
		only := &mockClient{provider: "A"}
		router.RegisterClient("A", only)

		client, err := router.FallbackClient("A")

		require.NoError(t, err)
		require.Same(t, only, client)
	})
}

func TestExpertRouter_ClientForAgent(t *testing.T) {
	t.Run("should use the agent's declared provider", func(t *testing.T) {
		router, _, clientB := newRouter(t)

		agent := &domain.Agent{
			Name:   "reviewer",
			Config: domain.AgentConfig{Provider: "B"},
		}

		client, err := router.ClientForAgent(agent)

		require.NoError(t, err)
		require.Same(t, clientB, client)
	})

	t.Run("should return the default client without a preference", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.ClientForAgent(&domain.Agent{Name: "plain"})

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})

	t.Run("should return the default client for a nil agent", func(t *testing.T) {
		router, clientA, _ := newRouter(t)

		client, err := router.ClientForAgent(nil)

		require.NoError(t, err)
		require.Same(t, clientA, client)
	})
}

func TestExpertRouter_RemoveClient(t *testing.T) {
	t.Run("should route around a removed provider", func(t *testing.T) {
		router, _, clientB := newRouter(t)

		router.RemoveClient("A")

		client, err := router.SelectClient("A")
		require.NoError(t, err)
		require.Same(t, clientB, client)
	})

	t.Run("should fail once the registry is empty", func(t *testing.T) {
		router, _, _ := newRouter(t)

		router.RemoveClient("A")
		router.RemoveClient("B")

		_, err := router.DefaultClient()
		require.ErrorIs(t, err, domain.ErrNoAvailableProvider)
	})
}
