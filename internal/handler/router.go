package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RomanRochniak/CapstoneGym/internal/middleware"
	"github.com/RomanRochniak/CapstoneGym/internal/ratelimit"
	"github.com/RomanRochniak/CapstoneGym/pkg/logger"
)

// RouterConfig carries the settings the router needs.
type RouterConfig struct {
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	ChatLimiter        *ratelimit.Limiter
	Logger             *logger.Logger
}

// Handlers groups the endpoint handlers.
type Handlers struct {
	Health   *HealthHandler
	Chat     *ChatHandler
	Sessions *SessionHandler
}

// NewRouter wires middleware and routes.
func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/ai", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.With(middleware.ChatRateLimit(cfg.ChatLimiter), middleware.LimitBody).
			Post("/chat/", h.Chat.Send)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.Sessions.List)
			r.Delete("/{sessionID}/", h.Sessions.Close)
			r.Get("/{sessionID}/messages/", h.Sessions.Messages)
		})
	})

	return r
}
