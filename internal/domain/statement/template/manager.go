package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
)

// Runner parses a document with a given template without persisting anything.
type Runner interface {
	Run(ctx context.Context, t Template, doc model.Document) ([]model.Transaction, error)
}

// TestResult is the outcome of a dry-run parse.
type TestResult struct {
	Success          bool     `json:"success"`
	TransactionCount int      `json:"transactionCount"`
	Errors           []string `json:"errors,omitempty"`
}

// Manager validates and persists templates.
type Manager struct {
	store     Store
	cache     *Cache
	validator *Validator
	runner    Runner
	logger    *slog.Logger
}

// NewManager creates a template manager.
func NewManager(store Store, cache *Cache, validator *Validator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		cache:     cache,
		validator: validator,
		logger:    logger,
	}
}

// WithRunner sets the parser used by TestTemplate.
func (m *Manager) WithRunner(r Runner) *Manager {
	m.runner = r
	return m
}

// Validate reports every violation in t.
func (m *Manager) Validate(t Template) ValidationResult {
	return m.validator.Validate(t)
}

// Create validates and stores a new template. Existing identifiers are
// rejected with ErrTemplateExists.
func (m *Manager) Create(ctx context.Context, t Template) error {
	if err := m.validator.Check(t); err != nil {
		return err
	}
	if err := m.store.Create(ctx, t); err != nil {
		if errors.Is(err, ErrTemplateExists) {
			return err
		}
		return fmt.Errorf("create template %s: %w", t.Identifier, err)
	}
	m.stored(t, "template created")
	return nil
}

// Import validates and stores t, replacing any template with the same
// identifier.
func (m *Manager) Import(ctx context.Context, t Template) error {
	if err := m.validator.Check(t); err != nil {
		return err
	}
	return m.save(ctx, t, "template imported")
}

func (m *Manager) save(ctx context.Context, t Template, msg string) error {
	if err := m.store.Save(ctx, t); err != nil {
		return fmt.Errorf("save template %s: %w", t.Identifier, err)
	}
	m.stored(t, msg)
	return nil
}

func (m *Manager) stored(t Template, msg string) {
	if m.cache != nil {
		m.cache.Invalidate(t.Identifier)
	}
	m.logger.Info(msg,
		slog.String("template", t.Identifier),
		slog.String("bank", t.BankName),
		slog.String("format", string(t.Format)),
	)
}

// Export reads a template back in the shape accepted by Import.
func (m *Manager) Export(ctx context.Context, identifier string) (Template, error) {
	if m.cache != nil {
		return m.cache.Get(ctx, identifier)
	}
	return m.store.Load(ctx, identifier)
}

// List returns all stored templates sorted by identifier.
func (m *Manager) List(ctx context.Context) ([]Template, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Identifier < all[j].Identifier })
	return all, nil
}

// Available filters templates by bank name and format. The bank name matches
// fuzzily and case-insensitively; empty filters match everything.
func (m *Manager) Available(ctx context.Context, bankName string, format model.Format) ([]Template, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	bankName = strings.TrimSpace(bankName)

	out := make([]Template, 0, len(all))
	for _, t := range all {
		if format != model.FormatUnknown && t.Format != format {
			continue
		}
		if bankName != "" && !fuzzy.MatchFold(bankName, t.BankName) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Test runs the template's parser against sample and reports how many
// transactions it produced. Nothing is persisted.
func (m *Manager) Test(ctx context.Context, identifier string, sample model.Document) TestResult {
	if m.runner == nil {
		return TestResult{Errors: []string{"no parser runner configured"}}
	}
	t, err := m.Export(ctx, identifier)
	if err != nil {
		return TestResult{Errors: []string{err.Error()}}
	}
	if res := m.validator.Validate(t); !res.IsValid {
		return TestResult{Errors: res.Errors}
	}

	txs, err := m.runner.Run(ctx, t, sample)
	if err != nil {
		m.logger.Warn("template test failed",
			slog.String("template", identifier),
			slog.Any("error", err),
		)
		return TestResult{Errors: []string{err.Error()}}
	}
	return TestResult{Success: true, TransactionCount: len(txs)}
}
