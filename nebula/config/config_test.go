package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "token", cfg.TokenCookie)
	assert.Equal(t, 20, cfg.ShortTermLimit)
	assert.Equal(t, 5, cfg.LongTermLimit)
	assert.Equal(t, "chromem", cfg.VectorBackend)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nebula.yaml")
	yml := "addr: \":9100\"\ndb_driver: sqlite\ndb_path: /tmp/x.db\nshort_term_limit: 8\nllm_provider: anthropic\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SHORT_TERM_LIMIT", "12")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 12, cfg.ShortTermLimit, "env overrides yaml")
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"bad int", map[string]string{"JWT_SECRET": "x", "LONG_TERM_LIMIT": "five"}},
		{"bad bool", map[string]string{"JWT_SECRET": "x", "MINIO_SECURE": "maybe"}},
		{"bad driver", map[string]string{"JWT_SECRET": "x", "DB_DRIVER": "mongo"}},
		{"pgvector on sqlite", map[string]string{"JWT_SECRET": "x", "DB_DRIVER": "sqlite", "VECTOR_BACKEND": "pgvector"}},
		{"bad provider", map[string]string{"JWT_SECRET": "x", "LLM_PROVIDER": "gemini"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingYAML(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("JWT_SECRET", "x")
	_, err := LoadConfig()
	assert.Error(t, err)
}
