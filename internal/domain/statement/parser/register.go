package parser

import (
	"context"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/extract"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/registry"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

// Register adds the built-in modules to reg. The extractor is shared by every
// table parser; it must be safe for concurrent use.
func Register(reg *registry.Registry, extractor extract.Extractor, opts Options) {
	reg.Register(ModuleTablePDF, func(context.Context) (registry.Factory, error) {
		return func(cfg template.ParserConfig) (registry.Parser, error) {
			p, err := NewTable(cfg, extractor, opts)
			if err != nil {
				return nil, err
			}
			return p, nil
		}, nil
	})
	reg.Register(ModuleColumnCSV, func(context.Context) (registry.Factory, error) {
		return func(cfg template.ParserConfig) (registry.Parser, error) {
			p, err := NewColumns(cfg, opts)
			if err != nil {
				return nil, err
			}
			return p, nil
		}, nil
	})
}
