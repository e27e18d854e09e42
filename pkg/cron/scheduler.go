// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/metrics"
)

// TemplateCache is implemented by *template.Cache.
type TemplateCache interface {
	Get(ctx context.Context, identifier string) (template.Template, error)
	Clear()
}

// ParserCache is implemented by *registry.Registry.
type ParserCache interface {
	ClearCache()
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	store     template.Store
	templates TemplateCache
	parsers   ParserCache
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(store template.Store, templates TemplateCache, parsers ParserCache, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		store:     store,
		templates: templates,
		parsers:   parsers,
		logger:    logger,
	}
}

// WithMetrics counts refresh runs.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// Start schedules the cache refresh with spec ("@every 5m", "*/10 * * * *").
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.refresh)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", spec),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow refreshes synchronously and returns the number of templates warmed.
func (s *Scheduler) RunNow(ctx context.Context) int {
	return s.Refresh(ctx)
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.Refresh(ctx)
}

// Refresh drops both caches so edits made by other instances become visible,
// then reloads every stored template.
func (s *Scheduler) Refresh(ctx context.Context) int {
	s.templates.Clear()
	if s.parsers != nil {
		s.parsers.ClearCache()
	}
	s.metrics.CacheRefreshed()

	all, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list templates", slog.Any("error", err))
		return 0
	}

	warmed, failed := 0, 0
	for _, t := range all {
		if _, err := s.templates.Get(ctx, t.Identifier); err != nil {
			s.logger.Warn("failed to warm template",
				slog.String("template", t.Identifier),
				slog.Any("error", err),
			)
			failed++
			continue
		}
		warmed++
	}

	s.logger.Info("template cache refreshed",
		slog.Int("templates_warmed", warmed),
		slog.Int("templates_failed", failed),
	)
	return warmed
}
