package repository

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

func sampleTemplate(id string) template.Template {
	mapping := 0
	return template.Template{
		Identifier:   id,
		BankName:     "Sample Bank",
		Format:       model.FormatCSV,
		ParserModule: "column_csv",
		ParserConfig: template.ParserConfig{
			ColumnMapping: &template.ColumnMapping{Date: &mapping, Description: &mapping},
			Delimiter:     ";",
			Currency:      "EUR",
		},
	}
}

// The embedded stores share one contract.
func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) template.Store{
		"memory": func(t *testing.T) template.Store { return NewMemoryStore() },
		"bolt": func(t *testing.T) template.Store {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "templates.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.Load(ctx, "missing")
			assert.ErrorIs(t, err, template.ErrTemplateNotFound)

			require.NoError(t, s.Save(ctx, sampleTemplate("zeta")))
			require.NoError(t, s.Save(ctx, sampleTemplate("alpha")))

			got, err := s.Load(ctx, "alpha")
			require.NoError(t, err)
			assert.Equal(t, sampleTemplate("alpha"), got)

			updated := sampleTemplate("alpha")
			updated.BankName = "Renamed Bank"
			require.NoError(t, s.Save(ctx, updated))

			all, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "alpha", all[0].Identifier)
			assert.Equal(t, "Renamed Bank", all[0].BankName)
			assert.Equal(t, "zeta", all[1].Identifier)

			taken := sampleTemplate("zeta")
			taken.BankName = "Other Bank"
			assert.ErrorIs(t, s.Create(ctx, taken), template.ErrTemplateExists)
			got, err = s.Load(ctx, "zeta")
			require.NoError(t, err)
			assert.Equal(t, "Sample Bank", got.BankName, "a rejected create leaves the stored template alone")
		})
	}
}

func TestStores_ConcurrentCreate(t *testing.T) {
	stores := map[string]func(t *testing.T) template.Store{
		"memory": func(t *testing.T) template.Store { return NewMemoryStore() },
		"bolt": func(t *testing.T) template.Store {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "templates.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			var wg sync.WaitGroup
			var created, rejected atomic.Int32
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.Create(context.Background(), sampleTemplate("race"))
					switch {
					case err == nil:
						created.Add(1)
					case errors.Is(err, template.ErrTemplateExists):
						rejected.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), created.Load())
			assert.Equal(t, int32(7), rejected.Load())
		})
	}
}

func TestBoltStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "templates.db")

	s, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleTemplate("kept")))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, ";", got.ParserConfig.Delimiter)
}

func TestMemoryStore_Seed(t *testing.T) {
	s := NewMemoryStore(sampleTemplate("a"), sampleTemplate("b"))
	all, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

var templateColumns = []string{"identifier", "bank_name", "format", "parser_module", "parser_config"}

func configJSON(t *testing.T, tmpl template.Template) []byte {
	t.Helper()
	data, err := json.Marshal(tmpl.ParserConfig)
	require.NoError(t, err)
	return data
}

func TestPostgresStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleTemplate("sample_bank")
	mock.ExpectQuery(`SELECT identifier, bank_name, format, parser_module, parser_config`).
		WithArgs("sample_bank").
		WillReturnRows(pgxmock.NewRows(templateColumns).
			AddRow("sample_bank", "Sample Bank", "CSV", "column_csv", configJSON(t, want)))

	got, err := NewPostgresStore(mock).Load(context.Background(), "sample_bank")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT identifier`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresStore(mock).Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tmpl := sampleTemplate("sample_bank")
	mock.ExpectExec(`INSERT INTO statement_templates`).
		WithArgs("sample_bank", "Sample Bank", "CSV", "column_csv", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresStore(mock).Save(context.Background(), tmpl))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`(?s)INSERT INTO statement_templates .* ON CONFLICT \(identifier\) DO NOTHING`).
		WithArgs("sample_bank", "Sample Bank", "CSV", "column_csv", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`(?s)INSERT INTO statement_templates .* ON CONFLICT \(identifier\) DO NOTHING`).
		WithArgs("sample_bank", "Sample Bank", "CSV", "column_csv", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	store := NewPostgresStore(mock)
	require.NoError(t, store.Create(context.Background(), sampleTemplate("sample_bank")))
	err = store.Create(context.Background(), sampleTemplate("sample_bank"))
	assert.ErrorIs(t, err, template.ErrTemplateExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO statement_templates`).
		WillReturnError(errors.New("connection reset"))

	err = NewPostgresStore(mock).Save(context.Background(), sampleTemplate("x"))
	assert.ErrorContains(t, err, "connection reset")
}

func TestPostgresStore_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, b := sampleTemplate("a_bank"), sampleTemplate("b_bank")
	mock.ExpectQuery(`FROM statement_templates\s+ORDER BY identifier`).
		WillReturnRows(pgxmock.NewRows(templateColumns).
			AddRow("a_bank", "Sample Bank", "CSV", "column_csv", configJSON(t, a)).
			AddRow("b_bank", "Sample Bank", "csv", "column_csv", configJSON(t, b)))

	all, err := NewPostgresStore(mock).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []template.Template{a, b}, all)
	assert.NoError(t, mock.ExpectationsWereMet())
}
