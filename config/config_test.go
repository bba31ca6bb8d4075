package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "BAAI/bge-small-en", cfg.Models.Dense)
	assert.Equal(t, "documents", cfg.Store.Collection)
	assert.Equal(t, 10, cfg.Query.Limit)
	assert.Equal(t, 60, cfg.Query.FusionK)
	assert.False(t, cfg.Remote.Enabled)
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load("/nonexistent/path/fastpoint.yaml")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fastpoint.yaml")
		content := `
models:
  dense: BAAI/bge-base-en
  sparse: prithivida/Splade_PP_en_v1
query:
  limit: 3
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "BAAI/bge-base-en", cfg.Models.Dense)
		assert.Equal(t, "prithivida/Splade_PP_en_v1", cfg.Models.Sparse)
		assert.Equal(t, 3, cfg.Query.Limit)
		// Untouched sections keep their defaults.
		assert.Equal(t, "documents", cfg.Store.Collection)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fastpoint.yaml")
		require.NoError(t, os.WriteFile(path, []byte("models: [broken"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoadFromDir(t *testing.T) {
	t.Run("fastpoint.yaml preferred", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fastpoint.yaml"), []byte("query:\n  limit: 7\n"), 0644))

		cfg, err := LoadFromDir(dir)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Query.Limit)
	})

	t.Run("empty dir yields defaults", func(t *testing.T) {
		cfg, err := LoadFromDir(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fastpoint.yaml")

	cfg := DefaultConfig()
	cfg.Models.Sparse = "Qdrant/bm42-all-minilm-l6-v2-attentions"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
