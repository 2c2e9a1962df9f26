package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/domain"
	"github.com/tenroll/internal/ratelimit"
	"github.com/tenroll/internal/service"
	"github.com/tenroll/internal/websocket"
)

// Handler provides HTTP handlers for the dice game API
type Handler struct {
	service *service.GameService
	hub     *websocket.Hub
	limiter *ratelimit.Limiter
	limits  *config.RateLimitConfig
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler. limiter may be nil to disable rate
// limiting (tests, local runs).
func NewHandler(
	service *service.GameService,
	hub *websocket.Hub,
	limiter *ratelimit.Limiter,
	limits *config.RateLimitConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		limiter: limiter,
		limits:  limits,
		logger:  logger,
	}
}

// ErrorResponse is the stable error payload: a human-readable message and a
// machine-readable code.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/games", func(r chi.Router) {
			r.With(h.limit("create", h.limitWindow().CreateGame)).Post("/", h.CreateGame)

			r.Route("/{gameID}", func(r chi.Router) {
				r.With(h.limit("read", h.limitWindow().ReadOnly)).Get("/", h.GetGame)
				r.With(h.limit("roll", h.limitWindow().RollDice)).Post("/rolls", h.RecordRoll)
				r.With(h.limit("finish", h.limitWindow().FinishGame)).Post("/finish", h.FinishGame)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.limit("read", h.limitWindow().ReadOnly))
			r.Get("/leaderboard", h.GetLeaderboard)
			r.Get("/leaderboard/top", h.GetTop)
			r.Get("/stats", h.GetStats)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

func (h *Handler) limitWindow() *config.RateLimitConfig {
	if h.limits != nil {
		return h.limits
	}
	return &config.RateLimitConfig{}
}

// limit applies a fixed-window budget per client IP to the wrapped routes.
func (h *Handler) limit(class string, window config.RateLimitWindow) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("ratelimit:%s:%s", class, clientIP(r))
			res := h.limiter.Allow(r.Context(), key, window.MaxRequests, window.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", res.ResetAt.UTC().Format(time.RFC3339))

			if !res.Allowed {
				retryAfter := int(res.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				h.writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Error:      domain.ErrRateLimited.Error(),
					Code:       domain.CodeRateLimited,
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's client address without the port. RealIP
// middleware has already resolved forwarding headers.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError translates a domain error into its HTTP status and stable code.
// Unknown errors are logged and collapsed to a generic internal failure.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	case domain.IsValidationError(err), domain.IsConflictError(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	default:
		h.logger.Error("request failed", "error", err)
		message = domain.ErrInternalError.Error()
	}

	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  domain.Code(err),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// CreateGame handles game creation
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.service.CreateGame(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, game)
}

// GetGame returns a game by ID
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.service.GetGame(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, game)
}

// RecordRoll handles roll submission
func (h *Handler) RecordRoll(w http.ResponseWriter, r *http.Request) {
	var req domain.RollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	roll, err := h.service.RecordRoll(r.Context(), chi.URLParam(r, "gameID"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, roll)
}

// FinishGame handles game completion
func (h *Handler) FinishGame(w http.ResponseWriter, r *http.Request) {
	// Body parsing is best-effort: an absent or malformed body finishes
	// without a name. A name that is present but invalid still fails in
	// the service.
	var req domain.FinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = domain.FinishRequest{}
	}

	game, err := h.service.FinishGame(r.Context(), chi.URLParam(r, "gameID"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, game)
}

// GetLeaderboard returns one page of completed games
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	page, err := queryInt(r, "page", 0)
	if err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	result, err := h.service.Leaderboard(r.Context(), limit, page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetTop returns the cached top-N ranking
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	entries, err := h.service.Top(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// GetStats returns aggregate statistics over completed games
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// queryInt parses an optional positive integer query parameter. A present
// but malformed or non-positive value is a caller error.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, domain.ErrInvalidRequest
	}
	return value, nil
}
