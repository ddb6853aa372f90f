package main

import (
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/davidbz/kiln/internal/chat"
	"github.com/davidbz/kiln/internal/config"
	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/http"
	"github.com/davidbz/kiln/internal/http/middleware"
	memory "github.com/davidbz/kiln/internal/memory/redis"
	"github.com/davidbz/kiln/internal/observability"
	"github.com/davidbz/kiln/internal/provider/dashscope"
	"github.com/davidbz/kiln/internal/provider/echo"
	"github.com/davidbz/kiln/internal/provider/openai"
	"github.com/davidbz/kiln/internal/provider/registry"
	"github.com/davidbz/kiln/internal/routing"
)

// ErrProviderNotConfigured indicates that a provider is not configured and should be skipped.
var ErrProviderNotConfigured = errors.New("provider not configured")

// echoPriority keeps the echo client last in line: it only ever wins when no
// real provider is registered.
const echoPriority = 10

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus()
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Routing core
	if err := container.Provide(func() domain.Registry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}
	if err := container.Provide(func(cfg *config.RouterConfig) domain.RoutingStrategy {
		return routing.NewKeywordStrategy(cfg.DefaultProvider)
	}); err != nil {
		log.Fatalf("Failed to provide routing strategy: %v", err)
	}
	if err := container.Provide(routing.NewExpertRouter); err != nil {
		log.Fatalf("Failed to provide router: %v", err)
	}
	if err := container.Provide(func(router *routing.ExpertRouter) domain.Router {
		return router
	}); err != nil {
		log.Fatalf("Failed to provide router interface: %v", err)
	}

	// OpenAI Provider
	if err := container.Provide(func(cfg *openai.Config) (*openai.Client, error) {
		if cfg.APIKey == "" {
			return nil, ErrProviderNotConfigured
		}

		return openai.NewClient(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide OpenAI client: %v", err)
	}

	// DashScope Provider
	if err := container.Provide(func(cfg *dashscope.Config) (*dashscope.Adapter, error) {
		if cfg.APIKey == "" {
			return nil, ErrProviderNotConfigured
		}

		return dashscope.NewAdapter(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide DashScope client: %v", err)
	}

	// Conversation memory (optional; an empty Redis address disables it)
	if err := container.Provide(func(cfg *config.RedisConfig) domain.HistoryStore {
		if cfg.Addr == "" {
			return nil
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		return memory.NewStore(client, time.Duration(cfg.HistoryTTL)*time.Second)
	}); err != nil {
		log.Fatalf("Failed to provide history store: %v", err)
	}

	registerProviders(container)

	// Domain Services
	if err := container.Provide(chat.NewService); err != nil {
		log.Fatalf("Failed to provide chat service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(func(cfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(cfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// registerProviders wires the configured clients into the router along with
// their routing metadata. Each provider is registered in its own Invoke so a
// single unconfigured provider does not block the rest.
func registerProviders(container *dig.Container) {
	// Echo is always available so an empty deployment still has a default
	// client to route to.
	if err := container.Invoke(func(router *routing.ExpertRouter) {
		expertise := []string{"echo", "test"}
		client := echo.NewClient().WithRouting(echoPriority, expertise)

		router.RegisterClient(client.Provider(), client)
		router.SetPriority(client.Provider(), echoPriority)
		router.SetExpertise(client.Provider(), expertise)
	}); err != nil {
		log.Fatalf("Failed to register echo provider: %v", err)
	}

	if err := container.Invoke(func(router *routing.ExpertRouter, cfg *openai.Config, client *openai.Client) {
		router.RegisterClient(client.Provider(), client)
		router.SetPriority(client.Provider(), cfg.Priority)
		router.SetExpertise(client.Provider(), cfg.Expertise)
	}); err != nil {
		// Ignore ErrProviderNotConfigured as it's expected for optional providers
		if !errors.Is(err, ErrProviderNotConfigured) {
			log.Fatalf("Failed to register OpenAI provider: %v", err)
		}
	}

	if err := container.Invoke(func(router *routing.ExpertRouter, cfg *dashscope.Config, client *dashscope.Adapter) {
		router.RegisterClient(client.Provider(), client)
		router.SetPriority(client.Provider(), cfg.Priority)
		router.SetExpertise(client.Provider(), cfg.Expertise)
	}); err != nil {
		if !errors.Is(err, ErrProviderNotConfigured) {
			log.Fatalf("Failed to register DashScope provider: %v", err)
		}
	}
}
