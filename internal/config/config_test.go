package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "chromem", cfg.Backend.Provider)
	assert.Equal(t, "vaultd", cfg.Backend.Collection)
	assert.Equal(t, "tei", cfg.Embedding.Provider)
	assert.Equal(t, "http://localhost:8080", cfg.Embedding.BaseURL)
	assert.Equal(t, 10, cfg.Queue.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Queue.FlushInterval)
	assert.Equal(t, 8991, cfg.HTTP.Port)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
backend:
  provider: qdrant
  qdrant:
    host: qdrant.internal
    port: 7000
queue:
  batch_size: 25
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "qdrant", cfg.Backend.Provider)
	assert.Equal(t, "qdrant.internal", cfg.Backend.Qdrant.Host)
	assert.Equal(t, 7000, cfg.Backend.Qdrant.Port)
	assert.Equal(t, 25, cfg.Queue.BatchSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, "tei", cfg.Embedding.Provider)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  provider: tei\n"), 0o600))

	t.Setenv("VAULTD_EMBEDDING_PROVIDER", "ollama")
	t.Setenv("VAULTD_EMBEDDING_BASE_URL", "http://ollama.internal:11434")
	t.Setenv("VAULTD_HTTP_PORT", "9001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, 9001, cfg.HTTP.Port)
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "chromem", cfg.Backend.Provider)
}

func TestValidationErrors(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		yaml string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"bad backend", "backend:\n  provider: pinecone\n"},
		{"bad embedder", "embedding:\n  provider: openai\n"},
		{"bad port", "http:\n  port: 99999\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
