// Package registry maps parser module identifiers to lazily loaded parser
// factories.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

// ErrParserNotFound is returned for identifiers with no registered loader.
var ErrParserNotFound = errors.New("parser not found")

// Parser turns one statement document into transactions.
type Parser interface {
	Parse(ctx context.Context, doc model.Document) ([]model.Transaction, error)
}

// Factory builds a parser configured for one template.
type Factory func(cfg template.ParserConfig) (Parser, error)

// Loader resolves a Factory. It runs at most once per identifier until the
// cache is cleared.
type Loader func(ctx context.Context) (Factory, error)

type entry struct {
	factory Factory
	err     error
}

// Registry is a dispatch table from identifier to Factory with load-once
// caching. The zero value is not usable; call New.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	loaders map[string]Loader
	cache   map[string]entry
	loads   map[string]int
	group   singleflight.Group
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		loaders: make(map[string]Loader),
		cache:   make(map[string]entry),
		loads:   make(map[string]int),
	}
}

// Register adds or replaces the loader for identifier. Replacing a loader
// drops its cached factory.
func (r *Registry) Register(identifier string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[identifier] = loader
	delete(r.cache, identifier)
}

// RegisterFactory registers a factory that needs no loading.
func (r *Registry) RegisterFactory(identifier string, f Factory) {
	r.Register(identifier, func(context.Context) (Factory, error) { return f, nil })
}

// ParserFactory returns the factory for identifier, loading it on first use.
// A failed load is cached too, so a broken loader is not retried until
// ClearCache.
func (r *Registry) ParserFactory(ctx context.Context, identifier string) (Factory, error) {
	r.mu.RLock()
	e, cached := r.cache[identifier]
	loader, known := r.loaders[identifier]
	r.mu.RUnlock()

	if cached {
		return e.factory, e.err
	}
	if !known {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrParserNotFound, identifier, strings.Join(r.ListAvailable(), ", "))
	}

	v, _, _ := r.group.Do(identifier, func() (any, error) {
		r.mu.RLock()
		e, ok := r.cache[identifier]
		r.mu.RUnlock()
		if ok {
			return e, nil
		}

		f, err := loader(ctx)
		switch {
		case err != nil:
			err = fmt.Errorf("load parser %s: %w", identifier, err)
		case f == nil:
			err = fmt.Errorf("load parser %s: loader returned no factory", identifier)
		}
		e = entry{factory: f, err: err}

		r.mu.Lock()
		r.cache[identifier] = e
		r.loads[identifier]++
		r.mu.Unlock()

		if err != nil {
			r.logger.Error("parser load failed", slog.String("parser", identifier), slog.Any("error", err))
		} else {
			r.logger.Debug("parser loaded", slog.String("parser", identifier))
		}
		return e, nil
	})
	e = v.(entry)
	return e.factory, e.err
}

// ListAvailable returns the registered identifiers, sorted.
func (r *Registry) ListAvailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.loaders))
	for id := range r.loaders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsAvailable reports whether identifier has a registered loader.
func (r *Registry) IsAvailable(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[identifier]
	return ok
}

// ClearCache drops every loaded factory. Loaders stay registered.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]entry)
}

// LoadCount returns how many times identifier's loader has run.
func (r *Registry) LoadCount(identifier string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loads[identifier]
}

// Build creates a parser for t using t's parser module.
func (r *Registry) Build(ctx context.Context, t template.Template) (Parser, error) {
	factory, err := r.ParserFactory(ctx, t.ParserModule)
	if err != nil {
		return nil, err
	}
	p, err := factory(t.ParserConfig)
	if err != nil {
		return nil, fmt.Errorf("build parser %s for %s: %w", t.ParserModule, t.Identifier, err)
	}
	return p, nil
}
