package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
	assert.Equal(t, StoreMemory, cfg.Store.Type)
	assert.Equal(t, "USD", cfg.Parsing.DefaultCurrency)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.Templates.SeedBuiltins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("TEMPLATE_STORE", "Bolt")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DEFAULT_CURRENCY", "inr")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, StoreBolt, cfg.Store.Type)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "INR", cfg.Parsing.DefaultCurrency)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("POSTGRES_DB=from_file\nPOSTGRES_PORT=6543\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("POSTGRES_DB")
		os.Unsetenv("POSTGRES_PORT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.Database.DSN(), "dbname=from_file")
	assert.Contains(t, cfg.Database.DSN(), "port=6543")
}

func TestLoad_UnknownStore(t *testing.T) {
	t.Setenv("TEMPLATE_STORE", "redis")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "TEMPLATE_STORE")
}
