package domain

import "context"

// ChatClient is the capability contract every provider adapter implements.
// Vendor-specific wire formats stay inside the adapter; callers only ever see
// this surface.
type ChatClient interface {
	// Call sends a prompt and blocks until the full response is available.
	Call(ctx context.Context, prompt *Prompt) (*Message, error)

	// CallAsync wraps Call in a future bounded by the provider's configured
	// timeout. The returned channel delivers exactly one result.
	CallAsync(ctx context.Context, prompt *Prompt) <-chan CallResult

	// Stream sends a prompt over the provider's streaming protocol and returns
	// the aggregated result: a single-element slice holding the final snapshot,
	// or an empty slice on total failure or timeout.
	Stream(ctx context.Context, prompt *Prompt) ([]Message, error)

	// Provider returns the provider identifier.
	Provider() string

	// Model returns the configured model name.
	Model() string

	// Config returns a snapshot of the client configuration. It contains at
	// minimum the keys "provider", "model" and "endpoint".
	Config() map[string]any
}

// Registry manages named chat clients. Registering under an existing name
// replaces the prior entry.
type Registry interface {
	Register(name string, client ChatClient)
	Remove(name string)

	// Get returns the client registered under name, or an error wrapping
	// ErrProviderNotFound.
	Get(name string) (ChatClient, error)

	// All returns a point-in-time snapshot of the registered clients.
	All() []ChatClient

	// Names returns the sorted names of the registered clients.
	Names() []string
}

// RoutingStrategy scores providers against free-text input.
type RoutingStrategy interface {
	// SelectBestExpert picks the provider whose expertise tags best match the
	// input, falling back to the configured default provider.
	SelectBestExpert(input string, expertise map[string][]string) string

	// CalculateMatchScore scores input against a single expertise tag in [0,1].
	CalculateMatchScore(input, domain string) float64

	// ProviderWeights distributes weight across the candidates by priority.
	// The weights sum to 1.0 for any non-empty candidate list.
	ProviderWeights(input string, providers []string) map[string]float64
}

// Router resolves chat clients by name, content or agent preference.
type Router interface {
	SelectClient(provider string) (ChatClient, error)
	SelectClientByInput(input string) (ChatClient, error)
	SelectBestClient(input string, rctx *RoutingContext) (ChatClient, error)
	FallbackClient(excluded string) (ChatClient, error)
	ClientForAgent(agent *Agent) (ChatClient, error)
	DefaultClient() (ChatClient, error)
	RegisterClient(name string, client ChatClient)
	RemoveClient(name string)
	AllClients() []ChatClient
}

// HistoryStore persists conversation history per session.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, messages ...Message) error
	History(ctx context.Context, sessionID string, limit int64) ([]Message, error)
	Clear(ctx context.Context, sessionID string) error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data map[string]any)
}
