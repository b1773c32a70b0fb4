package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("env overrides with defaults", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "https://api.example.com")
		t.Setenv("WS_BASE_URL", "wss://api.example.com")

		config, err := Load()
		require.NoError(t, err)
		require.NoError(t, config.Validate())
		assert.Equal(t, "https://api.example.com", config.APIBaseURL)
		assert.Equal(t, "wss://api.example.com", config.WSBaseURL)
		assert.Equal(t, "./chatkit.db", config.SQLite.File)
		assert.Equal(t, "./migrations", config.SQLite.Migrations)
	})

	t.Run("missing required values fail validation", func(t *testing.T) {
		config := &Config{}
		err := config.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("malformed url fails validation", func(t *testing.T) {
		config := &Config{APIBaseURL: "not a url", WSBaseURL: "wss://x"}
		config.SQLite.File = "f"
		config.SQLite.Migrations = "m"
		assert.Error(t, config.Validate())
	})
}
