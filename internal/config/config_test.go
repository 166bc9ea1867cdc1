package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Equal(t, 0.6, cfg.Temperature)
	assert.Equal(t, 500, cfg.MaxTokens)
	assert.Equal(t, 2*time.Second, cfg.ResponseInterval())
	assert.Equal(t, time.Minute, cfg.OracleTimeout())
	assert.True(t, cfg.EnableResearch)
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		assert.Equal(t, Default().Model, cfg.Model)
	})

	t.Run("file values overlay defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"api_key": "file-key",
			"response_interval_seconds": 0.5,
			"enable_research": false
		}`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "file-key", cfg.APIKey)
		assert.Equal(t, 500*time.Millisecond, cfg.ResponseInterval())
		assert.False(t, cfg.EnableResearch)
		assert.Equal(t, Default().Model, cfg.Model) // untouched field keeps default
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"api_key": "file-key"}`), 0644))
		t.Setenv("PARLEY_API_KEY", "env-key")
		t.Setenv("PARLEY_RESEARCH", "false")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.APIKey)
		assert.False(t, cfg.EnableResearch)
	})

	t.Run("dedicated key wins over shared key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "shared")
		t.Setenv("PARLEY_API_KEY", "dedicated")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "dedicated", cfg.APIKey)
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "missing key must fail")

	cfg.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.ResponseIntervalSec = -1
	assert.Error(t, cfg.Validate())
}
