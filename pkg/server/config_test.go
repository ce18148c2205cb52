package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/mongochange/pkg/domain"
)

func TestLoadConfig(t *testing.T) {
	t.Run("no path returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "mongochange", cfg.AuditDatabase)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/mongochange.toml")
		assert.Error(t, err)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mongochange.toml")
		content := `
port = "9090"
audit_uri = "mongodb://audit:27017"
audit_database = "ops"
allow_pattern = "^mongodb://internal\\."
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, "mongodb://audit:27017", cfg.AuditURI)
		assert.Equal(t, "ops", cfg.AuditDatabase)
		assert.Equal(t, `^mongodb://internal\.`, cfg.AllowPattern)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{
			name:   "complete config passes",
			mutate: func(c *Config) { c.AuditURI = "mongodb://audit:27017" },
		},
		{
			name:      "missing audit URI fails",
			mutate:    func(c *Config) {},
			expectErr: true,
		},
		{
			name: "missing audit database fails",
			mutate: func(c *Config) {
				c.AuditURI = "mongodb://audit:27017"
				c.AuditDatabase = ""
			},
			expectErr: true,
		},
		{
			name: "broken allow pattern fails",
			mutate: func(c *Config) {
				c.AuditURI = "mongodb://audit:27017"
				c.AllowPattern = "("
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !tt.expectErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *domain.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr, "config rejections are ConfigurationError")
		})
	}
}
