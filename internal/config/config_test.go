package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pgedit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 100, cfg.Grid.PageSize)
	assert.Equal(t, int32(4), cfg.Pool.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Pool.MaxConnLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Pool.TxTimeout)
	assert.False(t, cfg.Audit.Enabled)
	assert.Empty(t, cfg.Connections)
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("PGEDIT_PORT", "9999")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "7000"
grid:
  page_size: 250
connections:
  - id: warehouse
    dsn: postgres://localhost/warehouse
`)
	t.Setenv("PGEDIT_PAGE_SIZE", "500")
	t.Setenv("PGEDIT_DSN", "postgres://localhost/app")
	t.Setenv("PGEDIT_AUDIT_SECRET_KEY", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 500, cfg.Grid.PageSize)
	assert.Equal(t, "s3cret", cfg.Audit.SecretKey)
	assert.Equal(t, []ConnectionConfig{
		{ID: "warehouse", DSN: "postgres://localhost/warehouse"},
		{ID: DefaultConnectionID, DSN: "postgres://localhost/app"},
	}, cfg.Connections)

	db := cfg.Database(cfg.Connections[0])
	assert.Equal(t, "postgres://localhost/warehouse", db.DSN)
	assert.Equal(t, 10*time.Second, db.ConnectTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"page size zero", func(c *Config) { c.Grid.PageSize = 0 }, "grid.page_size"},
		{"page size too large", func(c *Config) { c.Grid.PageSize = 1001 }, "grid.page_size"},
		{"duplicate id", func(c *Config) {
			c.Connections = []ConnectionConfig{{ID: "a", DSN: "x"}, {ID: "a", DSN: "y"}}
		}, `duplicate connection id "a"`},
		{"missing dsn", func(c *Config) { c.Connections = []ConnectionConfig{{ID: "a"}} }, "dsn is required"},
		{"audit without bucket", func(c *Config) { c.Audit.Enabled = true; c.Audit.Bucket = "" }, "audit: object store bucket is required"},
		{"audit without endpoint", func(c *Config) { c.Audit.Enabled = true; c.Audit.Endpoint = "" }, "endpoint is required"},
		{"min conns above max", func(c *Config) {
			c.Pool.MaxConns, c.Pool.MinConns = 2, 5
			c.Connections = []ConnectionConfig{{ID: "a", DSN: "postgres://x"}}
		}, `connection "a": min_conns (5) exceeds max_conns (2)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Grid: GridConfig{PageSize: 100}, Audit: AuditConfig{Endpoint: "localhost:9000", Bucket: "b"}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidPageSize(t *testing.T) {
	path := writeConfig(t, "grid:\n  page_size: 5000\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid.page_size")
}
