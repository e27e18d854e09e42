package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/handler"
)

// NewServer builds the HTTP server with CORS and the API router.
func (d *Dependencies) NewServer() *http.Server {
	cfg := d.Config.Server

	routerCfg := handler.RouterConfig{
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	if d.Metrics != nil {
		routerCfg.Metrics = d.Metrics.Handler()
	}
	router := handler.NewRouter(d.StatementHandler, routerCfg)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		MaxAge:         300,
	})

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Serve runs the HTTP server and the cache refresh job until ctx is done,
// then shuts both down gracefully.
func (d *Dependencies) Serve(ctx context.Context) error {
	if spec := d.Config.Templates.RefreshSchedule; spec != "" {
		if err := d.Scheduler.Start(spec); err != nil {
			return err
		}
		defer func() { <-d.Scheduler.Stop().Done() }()
	}

	server := d.NewServer()
	errCh := make(chan error, 1)
	go func() {
		d.Logger.Info("starting statement API", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	d.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	d.Logger.Info("server stopped")
	return nil
}
