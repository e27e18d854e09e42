package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/extract"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/handler"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/parser"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/registry"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/repository"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
	"github.com/FACorreiaa/statement-engine/pkg/config"
	"github.com/FACorreiaa/statement-engine/pkg/cron"
	"github.com/FACorreiaa/statement-engine/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	// Storage
	Store     template.Store
	closeBolt func() error

	// Services
	Registry         *registry.Registry
	TemplateCache    *template.Cache
	Validator        *template.Validator
	TemplateManager  *template.Manager
	StatementService *service.StatementService
	Metrics          *metrics.Metrics
	Scheduler        *cron.Scheduler

	// Handlers
	StatementHandler *handler.StatementHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize template store
	if err := deps.initStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Seed templates
	if err := deps.seedTemplates(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to seed templates: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		slog.String("store", cfg.Store.Type),
	)
	return deps, nil
}

// initStore opens the configured template store and runs migrations
func (d *Dependencies) initStore(ctx context.Context) error {
	switch d.Config.Store.Type {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, d.Config.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return err
		}
		d.Pool = pool
		d.Store = repository.NewPostgresStore(pool)
		d.Logger.Info("database connected and migrations completed successfully")

	case config.StoreBolt:
		bolt, err := repository.OpenBolt(d.Config.Store.BoltPath)
		if err != nil {
			return err
		}
		d.Store = bolt
		d.closeBolt = bolt.Close
		d.Logger.Info("bolt store opened", slog.String("path", d.Config.Store.BoltPath))

	default:
		d.Store = repository.NewMemoryStore()
	}
	return nil
}

// initServices wires the registry, caches and the statement service
func (d *Dependencies) initServices() error {
	d.Registry = registry.New(d.Logger)
	parser.Register(d.Registry, extract.NewPDF(), parser.Options{
		Currency: d.Config.Parsing.DefaultCurrency,
		Logger:   d.Logger,
	})

	d.TemplateCache = template.NewCache(d.Store, d.Logger)
	d.Validator = template.NewValidator(d.Registry)
	d.TemplateManager = template.NewManager(d.Store, d.TemplateCache, d.Validator, d.Logger)

	categorizer, err := loadCategorizer(d.Config.Templates.CategoryRules)
	if err != nil {
		return err
	}

	if d.Config.Observability.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		d.Metrics = metrics.New(reg)
	}

	d.StatementService = service.NewStatementService(d.TemplateCache, d.Registry, d.Logger).
		WithCategorizer(categorizer).
		WithMetrics(d.Metrics)
	d.TemplateManager.WithRunner(d.StatementService)

	d.Scheduler = cron.NewScheduler(d.Store, d.TemplateCache, d.Registry, d.Logger).WithMetrics(d.Metrics)

	d.Logger.Info("services initialized",
		slog.Any("parser_modules", d.Registry.ListAvailable()),
	)
	return nil
}

// seedTemplates creates the bundled and directory templates that are not yet
// stored. Existing templates are left untouched.
func (d *Dependencies) seedTemplates(ctx context.Context) error {
	var seeds []template.Template
	if d.Config.Templates.SeedBuiltins {
		builtins, err := template.Builtins()
		if err != nil {
			return err
		}
		seeds = append(seeds, builtins...)
	}
	if dir := d.Config.Templates.SeedDir; dir != "" {
		fromDir, err := template.LoadDir(os.DirFS(dir), ".")
		if err != nil {
			return err
		}
		seeds = append(seeds, fromDir...)
	}

	_, err := SeedTemplates(ctx, d.TemplateManager, seeds, d.Logger)
	return err
}

// SeedTemplates creates each template unless it already exists and returns
// how many were created.
func SeedTemplates(ctx context.Context, m *template.Manager, seeds []template.Template, logger *slog.Logger) (int, error) {
	created := 0
	for _, t := range seeds {
		err := m.Create(ctx, t)
		switch {
		case err == nil:
			created++
		case errors.Is(err, template.ErrTemplateExists):
			logger.Debug("template already stored", slog.String("template", t.Identifier))
		default:
			return created, err
		}
	}
	return created, nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.StatementHandler = handler.NewStatementHandler(
		d.StatementService,
		d.TemplateManager,
		d.Config.Server.MaxUploadBytes,
		d.Logger,
	)
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.closeBolt != nil {
		if err := d.closeBolt(); err != nil {
			d.Logger.Error("failed to close bolt store", slog.Any("error", err))
		}
	}
	d.Logger.Info("cleanup completed")
}
