package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

// DBTX is the subset of *pgxpool.Pool the store uses. pgxmock pools satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements template.Store on the statement_templates table.
// parser_config is stored as JSONB.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore creates a new PostgreSQL template store
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load retrieves a template by identifier
func (s *PostgresStore) Load(ctx context.Context, identifier string) (template.Template, error) {
	query := `
		SELECT identifier, bank_name, format, parser_module, parser_config
		FROM statement_templates
		WHERE identifier = $1`

	t, err := scanTemplate(s.db.QueryRow(ctx, query, identifier))
	if errors.Is(err, pgx.ErrNoRows) {
		return template.Template{}, fmt.Errorf("%w: %s", template.ErrTemplateNotFound, identifier)
	}
	if err != nil {
		return template.Template{}, fmt.Errorf("failed to load template %s: %w", identifier, err)
	}
	return t, nil
}

// Create inserts a template unless the identifier is taken
func (s *PostgresStore) Create(ctx context.Context, t template.Template) error {
	cfg, err := json.Marshal(t.ParserConfig)
	if err != nil {
		return fmt.Errorf("failed to encode parser config: %w", err)
	}

	query := `
		INSERT INTO statement_templates (identifier, bank_name, format, parser_module, parser_config)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier) DO NOTHING`

	tag, err := s.db.Exec(ctx, query, t.Identifier, t.BankName, string(t.Format), t.ParserModule, cfg)
	if err != nil {
		return fmt.Errorf("failed to create template %s: %w", t.Identifier, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", template.ErrTemplateExists, t.Identifier)
	}
	return nil
}

// Save inserts or replaces a template
func (s *PostgresStore) Save(ctx context.Context, t template.Template) error {
	cfg, err := json.Marshal(t.ParserConfig)
	if err != nil {
		return fmt.Errorf("failed to encode parser config: %w", err)
	}

	query := `
		INSERT INTO statement_templates (identifier, bank_name, format, parser_module, parser_config)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier) DO UPDATE SET
			bank_name = EXCLUDED.bank_name,
			format = EXCLUDED.format,
			parser_module = EXCLUDED.parser_module,
			parser_config = EXCLUDED.parser_config,
			updated_at = now()`

	_, err = s.db.Exec(ctx, query, t.Identifier, t.BankName, string(t.Format), t.ParserModule, cfg)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", t.Identifier, err)
	}
	return nil
}

// List returns every template ordered by identifier
func (s *PostgresStore) List(ctx context.Context) ([]template.Template, error) {
	query := `
		SELECT identifier, bank_name, format, parser_module, parser_config
		FROM statement_templates
		ORDER BY identifier`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var out []template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTemplate(row pgx.Row) (template.Template, error) {
	var t template.Template
	var format string
	var cfg []byte
	if err := row.Scan(&t.Identifier, &t.BankName, &format, &t.ParserModule, &cfg); err != nil {
		return template.Template{}, err
	}
	t.Format = model.ParseFormat(format)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &t.ParserConfig); err != nil {
			return template.Template{}, fmt.Errorf("decode parser config of %s: %w", t.Identifier, err)
		}
	}
	return t, nil
}
