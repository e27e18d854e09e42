// Package repository provides the template store backends: in-memory,
// PostgreSQL and an embedded bbolt file.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

// MemoryStore keeps templates in a map. Used by tests and as the API default
// when no database is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]template.Template
}

// NewMemoryStore creates a store pre-filled with seed.
func NewMemoryStore(seed ...template.Template) *MemoryStore {
	s := &MemoryStore{templates: make(map[string]template.Template, len(seed))}
	for _, t := range seed {
		s.templates[t.Identifier] = t
	}
	return s
}

func (s *MemoryStore) Load(_ context.Context, identifier string) (template.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[identifier]
	if !ok {
		return template.Template{}, fmt.Errorf("%w: %s", template.ErrTemplateNotFound, identifier)
	}
	return t, nil
}

func (s *MemoryStore) Create(_ context.Context, t template.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.Identifier]; ok {
		return fmt.Errorf("%w: %s", template.ErrTemplateExists, t.Identifier)
	}
	s.templates[t.Identifier] = t
	return nil
}

func (s *MemoryStore) Save(_ context.Context, t template.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.Identifier] = t
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]template.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]template.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}
