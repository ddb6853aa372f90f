// Package registry implements the concurrent provider registry. It is pure
// bookkeeping: a name-to-client map safe under concurrent registration,
// removal and lookup. Selection logic lives in the routing package.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/kiln/internal/domain"
)

// Registry implements the domain.Registry interface.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]domain.ChatClient
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:      sync.RWMutex{},
		clients: make(map[string]domain.ChatClient),
	}
}

// Register inserts or replaces the client registered under name. Registering
// an existing name overwrites the prior entry; no two entries share a name.
func (r *Registry) Register(name string, client domain.ChatClient) {
	if name == "" || client == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[name] = client
}

// Remove deletes the client registered under name. Removing a name that was
// never registered is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, name)
}

// Get retrieves a client by provider name.
func (r *Registry) Get(name string) (domain.ChatClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[name]
	if !exists {
		return nil, fmt.Errorf("provider %s: %w", name, domain.ErrProviderNotFound)
	}

	return client, nil
}

// All returns a point-in-time snapshot of the registered clients. The snapshot
// never aliases internal storage, so later mutations do not affect it.
func (r *Registry) All() []domain.ChatClient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]domain.ChatClient, 0, len(r.clients))
	for _, name := range r.sortedNames() {
		clients = append(clients, r.clients[name])
	}

	return clients
}

// Names returns the sorted names of the registered clients.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames()
}

// sortedNames returns registered names in lexicographic order. Callers must
// hold at least a read lock.
func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
