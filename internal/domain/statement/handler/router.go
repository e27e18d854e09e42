package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	RateLimitPerSecond int
	RateLimitBurst     int
	Timeout            time.Duration
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the API router.
func NewRouter(h *StatementHandler, cfg RouterConfig) *chi.Mux {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			r.Use(RateLimit(rate.Limit(cfg.RateLimitPerSecond), max(cfg.RateLimitBurst, 1)))
		}
		r.Use(middleware.Timeout(cfg.Timeout))
		h.Routes(r)
	})
	return r
}
