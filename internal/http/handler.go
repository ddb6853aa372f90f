package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidbz/kiln/internal/chat"
	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
	"go.uber.org/zap"
)

// Handler handles HTTP requests.
type Handler struct {
	chat     *chat.Service
	router   domain.Router
	strategy domain.RoutingStrategy
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(chatService *chat.Service, router domain.Router, strategy domain.RoutingStrategy) *Handler {
	return &Handler{
		chat:     chatService,
		router:   router,
		strategy: strategy,
	}
}

// chatRequest is the request body for /v1/chat and /v1/chat/stream.
type chatRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	Input       string `json:"input"`
	Provider    string `json:"provider,omitempty"`
	Requirement string `json:"requirement,omitempty"`
}

// chatResponse is the response body for /v1/chat.
type chatResponse struct {
	SessionID string         `json:"session_id,omitempty"`
	Message   domain.Message `json:"message"`
}

// routeRequest is the request body for /v1/route.
type routeRequest struct {
	Input       string `json:"input"`
	Provider    string `json:"provider,omitempty"`
	Requirement string `json:"requirement,omitempty"`
}

// routeResponse is the dry-run routing decision for /v1/route.
type routeResponse struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Weights  map[string]float64 `json:"weights"`
}

// HandleChat processes synchronous chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early validation.
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, rctx, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("chat request received",
		zap.String("session_id", req.SessionID),
		zap.String("forced_provider", rctx.ForcedProvider),
		zap.String("requirement", rctx.Requirement),
	)

	reply, err := h.chat.Chat(ctx, req.SessionID, req.Input, rctx)
	if err != nil {
		logger.Error("chat failed", zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	encodeErr := json.NewEncoder(w).Encode(chatResponse{
		SessionID: req.SessionID,
		Message:   *reply,
	})
	if encodeErr != nil {
		logger.Error("failed to encode response", zap.Error(encodeErr))
		http.Error(w, fmt.Sprintf("failed to encode response: %v", encodeErr), http.StatusInternalServerError)
		return
	}
}

// HandleChatStream processes streaming chat requests. The aggregated snapshot
// list is written as SSE data events followed by a terminal done event.
func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, rctx, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("stream request started", zap.String("session_id", req.SessionID))

	flusher, flushable := w.(http.Flusher)
	if !flushable {
		logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	messages, err := h.chat.StreamChat(ctx, req.SessionID, req.Input, rctx)
	if err != nil {
		logger.Error("stream failed", zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, message := range messages {
		data, _ := json.Marshal(message)
		fmt.Fprintf(w, "data: %s\n\n", string(data))
		flusher.Flush()
	}

	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()

	logger.Info("stream completed", zap.Int("messages", len(messages)))
}

// HandleRoute returns the routing decision for an input without calling any
// provider.
func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	rctx := &domain.RoutingContext{
		ForcedProvider: req.Provider,
		Requirement:    req.Requirement,
	}

	client, err := h.router.SelectBestClient(req.Input, rctx)
	if err != nil {
		observability.FromContext(ctx).Error("routing failed", zap.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	candidates := make([]string, 0)
	for _, registered := range h.router.AllClients() {
		candidates = append(candidates, registered.Provider())
	}

	w.Header().Set("Content-Type", "application/json")
	encodeErr := json.NewEncoder(w).Encode(routeResponse{
		Provider: client.Provider(),
		Model:    client.Model(),
		Weights:  h.strategy.ProviderWeights(req.Input, candidates),
	})
	if encodeErr != nil {
		observability.FromContext(ctx).Error("failed to encode response", zap.Error(encodeErr))
		http.Error(w, fmt.Sprintf("failed to encode response: %v", encodeErr), http.StatusInternalServerError)
		return
	}
}

// HandleProviders lists the registered providers and their metadata.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providers := make([]map[string]any, 0)
	for _, client := range h.router.AllClients() {
		providers = append(providers, client.Config())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"providers": providers}); err != nil {
		observability.FromContext(r.Context()).Error("failed to encode response", zap.Error(err))
		return
	}
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

// decodeChatRequest parses and validates the shared chat request body. The
// X-Provider header takes precedence over the body's provider field.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, *domain.RoutingContext, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return nil, nil, false
	}

	if req.Input == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return nil, nil, false
	}

	forced := r.Header.Get("X-Provider")
	if forced == "" {
		forced = req.Provider
	}

	return &req, &domain.RoutingContext{
		ForcedProvider: forced,
		Requirement:    req.Requirement,
	}, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrNoAvailableProvider) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
