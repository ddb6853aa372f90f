package routing

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
)

// ExpertRouter implements domain.Router on top of a registry and a routing
// strategy. Every call is a stateless function of the live registry, the
// configured expertise and priority tables, and the call arguments; nothing
// is memoized.
type ExpertRouter struct {
	registry domain.Registry
	strategy domain.RoutingStrategy

	mu         sync.RWMutex
	expertise  map[string][]string
	priorities map[string]int
}

// NewExpertRouter creates a router over the given registry and strategy.
func NewExpertRouter(registry domain.Registry, strategy domain.RoutingStrategy) *ExpertRouter {
	return &ExpertRouter{
		registry:   registry,
		strategy:   strategy,
		expertise:  make(map[string][]string),
		priorities: make(map[string]int),
	}
}

// SetExpertise sets the expertise tags used for content-based routing.
func (r *ExpertRouter) SetExpertise(provider string, tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expertise[provider] = append([]string(nil), tags...)
}

// SetPriority sets the priority weight used for default and fallback
// selection. The strategy is kept in sync when it supports priorities.
func (r *ExpertRouter) SetPriority(provider string, priority int) {
	r.mu.Lock()
	r.priorities[provider] = priority
	r.mu.Unlock()

	if ps, ok := r.strategy.(interface{ SetPriority(string, int) }); ok {
		ps.SetPriority(provider, priority)
	}
}

// SelectClient resolves a client by provider name. A missing provider is
// non-fatal: it is logged and the default client is substituted.
func (r *ExpertRouter) SelectClient(provider string) (domain.ChatClient, error) {
	client, err := r.registry.Get(provider)
	if err != nil {
		observability.FromContext(context.Background()).Warn("provider not registered, using default client",
			observability.String("provider", provider),
		)
		return r.DefaultClient()
	}

	return client, nil
}

// SelectClientByInput resolves a client by scoring the input against the
// configured expertise table.
func (r *ExpertRouter) SelectClientByInput(input string) (domain.ChatClient, error) {
	r.mu.RLock()
	expertise := make(map[string][]string, len(r.expertise))
	for provider, tags := range r.expertise {
		expertise[provider] = tags
	}
	r.mu.RUnlock()

	best := r.strategy.SelectBestExpert(input, expertise)

	return r.SelectClient(best)
}

// SelectBestClient resolves a client using the full resolution order: forced
// provider first, then capability requirement, then content analysis.
func (r *ExpertRouter) SelectBestClient(input string, rctx *domain.RoutingContext) (domain.ChatClient, error) {
	if rctx != nil && rctx.ForcedProvider != "" {
		return r.SelectClient(rctx.ForcedProvider)
	}

	if rctx != nil && rctx.Requirement != "" {
		if client := r.clientForRequirement(rctx.Requirement); client != nil {
			return client, nil
		}
	}

	return r.SelectClientByInput(input)
}

// FallbackClient picks the highest-priority registered provider excluding the
// given one. Ties are broken by lexicographic name. With nothing left to pick
// from, the default client is returned.
func (r *ExpertRouter) FallbackClient(excluded string) (domain.ChatClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	bestPriority := 0
	for _, name := range r.registry.Names() {
		if name == excluded {
			continue
		}
		priority := r.priorities[name]
		if best == "" || priority > bestPriority {
			best = name
			bestPriority = priority
		}
	}

	if best == "" {
		return r.defaultClientLocked()
	}

	client, err := r.registry.Get(best)
	if err != nil {
		// The provider vanished between Names and Get; fall back hard.
		return r.defaultClientLocked()
	}

	return client, nil
}

// ClientForAgent resolves the client an agent prefers, falling back to the
// default client when the agent declares no provider.
func (r *ExpertRouter) ClientForAgent(agent *domain.Agent) (domain.ChatClient, error) {
	if agent != nil && agent.Config.Provider != "" {
		return r.SelectClient(agent.Config.Provider)
	}

	return r.DefaultClient()
}

// DefaultClient returns the registered provider with the highest priority.
// Ties are broken by lexicographic name. An empty registry is fatal.
func (r *ExpertRouter) DefaultClient() (domain.ChatClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.defaultClientLocked()
}

// RegisterClient registers a client under the given provider name.
func (r *ExpertRouter) RegisterClient(name string, client domain.ChatClient) {
	r.registry.Register(name, client)
}

// RemoveClient removes the client registered under the given provider name.
func (r *ExpertRouter) RemoveClient(name string) {
	r.registry.Remove(name)
}

// AllClients returns a snapshot of all registered clients.
func (r *ExpertRouter) AllClients() []domain.ChatClient {
	return r.registry.All()
}

// clientForRequirement filters registered providers by capability metadata and
// returns the first match in name order, or nil when nothing matches.
func (r *ExpertRouter) clientForRequirement(requirement string) domain.ChatClient {
	names := r.registry.Names()
	sort.Strings(names)

	for _, name := range names {
		client, err := r.registry.Get(name)
		if err != nil {
			continue
		}
		if capabilityMatch(requirement, client.Config()) {
			return client
		}
	}

	return nil
}

// defaultClientLocked computes the default client. Callers must hold at least
// a read lock over the priority table.
func (r *ExpertRouter) defaultClientLocked() (domain.ChatClient, error) {
	best := ""
	bestPriority := 0
	for _, name := range r.registry.Names() {
		priority := r.priorities[name]
		if best == "" || priority > bestPriority {
			best = name
			bestPriority = priority
		}
	}

	if best == "" {
		return nil, domain.ErrNoAvailableProvider
	}

	client, err := r.registry.Get(best)
	if err != nil {
		return nil, domain.ErrNoAvailableProvider
	}

	return client, nil
}

// capabilityMatch reports whether any of the client's capability tags appears
// in the requirement string.
func capabilityMatch(requirement string, config map[string]any) bool {
	raw, ok := config["capabilities"]
	if !ok {
		return false
	}

	var capabilities []string
	switch v := raw.(type) {
	case []string:
		capabilities = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				capabilities = append(capabilities, s)
			}
		}
	}

	requirement = strings.ToLower(requirement)
	for _, capability := range capabilities {
		if capability != "" && strings.Contains(requirement, strings.ToLower(capability)) {
			return true
		}
	}

	return false
}
