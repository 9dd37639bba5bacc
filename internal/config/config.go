// Package config loads pgedit settings from an optional YAML file with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/koustreak/pgedit/internal/browse"
	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/filestore"
	"github.com/koustreak/pgedit/internal/logger"
)

// DefaultConnectionID names the connection built from PGEDIT_DSN.
const DefaultConnectionID = "default"

type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Log         LogConfig          `yaml:"log"`
	Grid        GridConfig         `yaml:"grid"`
	Pool        PoolConfig         `yaml:"pool"`
	Connections []ConnectionConfig `yaml:"connections"`
	Preferences PreferencesConfig  `yaml:"preferences"`
	Audit       AuditConfig        `yaml:"audit"`

	// DSN adds a connection named "default". Secret, so not in YAML.
	DSN string `yaml:"-" env:"PGEDIT_DSN"`
}

type ServerConfig struct {
	BindAddr     string        `yaml:"bind_addr" env:"PGEDIT_BIND_ADDR" env-default:"127.0.0.1"`
	Port         string        `yaml:"port" env:"PGEDIT_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"PGEDIT_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"PGEDIT_WRITE_TIMEOUT" env-default:"60s"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.BindAddr + ":" + s.Port
}

type LogConfig struct {
	Level  string `yaml:"level" env:"PGEDIT_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"PGEDIT_LOG_FORMAT" env-default:"json"`
}

type GridConfig struct {
	PageSize int `yaml:"page_size" env:"PGEDIT_PAGE_SIZE" env-default:"100"`
}

// PoolConfig applies to every connection.
type PoolConfig struct {
	MaxConns        int32         `yaml:"max_conns" env:"PGEDIT_POOL_MAX_CONNS" env-default:"4"`
	MinConns        int32         `yaml:"min_conns" env:"PGEDIT_POOL_MIN_CONNS" env-default:"0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGEDIT_POOL_MAX_CONN_LIFETIME" env-default:"30m"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"PGEDIT_POOL_MAX_CONN_IDLE_TIME" env-default:"5m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"PGEDIT_POOL_CONNECT_TIMEOUT" env-default:"10s"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PGEDIT_POOL_QUERY_TIMEOUT" env-default:"30s"`
	// TxTimeout bounds one change-set transaction after BEGIN.
	TxTimeout       time.Duration `yaml:"tx_timeout" env:"PGEDIT_POOL_TX_TIMEOUT" env-default:"5m"`
}

type ConnectionConfig struct {
	ID  string `yaml:"id"`
	DSN string `yaml:"dsn"`
}

type PreferencesConfig struct {
	Path string `yaml:"path" env:"PGEDIT_PREFERENCES_PATH" env-default:"pgedit-preferences.yaml"`
}

type AuditConfig struct {
	Enabled   bool   `yaml:"enabled" env:"PGEDIT_AUDIT_ENABLED" env-default:"false"`
	Endpoint  string `yaml:"endpoint" env:"PGEDIT_AUDIT_ENDPOINT" env-default:"localhost:9000"`
	Bucket    string `yaml:"bucket" env:"PGEDIT_AUDIT_BUCKET" env-default:"pgedit-audit"`
	Prefix    string `yaml:"prefix" env:"PGEDIT_AUDIT_PREFIX" env-default:"executions"`
	UseSSL    bool   `yaml:"use_ssl" env:"PGEDIT_AUDIT_USE_SSL" env-default:"false"`
	Region    string `yaml:"region" env:"PGEDIT_AUDIT_REGION" env-default:""`
	AccessKey string `yaml:"-" env:"PGEDIT_AUDIT_ACCESS_KEY"`
	SecretKey string `yaml:"-" env:"PGEDIT_AUDIT_SECRET_KEY"`
}

// Load reads path (if it exists) and applies environment overrides. An
// empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		} else if err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg.finish()
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	if c.DSN != "" && c.connection(DefaultConnectionID) == nil {
		c.Connections = append(c.Connections, ConnectionConfig{ID: DefaultConnectionID, DSN: c.DSN})
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func (c *Config) connection(id string) *ConnectionConfig {
	for i := range c.Connections {
		if c.Connections[i].ID == id {
			return &c.Connections[i]
		}
	}
	return nil
}

// Validate checks the settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if c.Grid.PageSize < 1 || c.Grid.PageSize > browse.MaxPageSize {
		return fmt.Errorf("grid.page_size must be between 1 and %d, got %d", browse.MaxPageSize, c.Grid.PageSize)
	}
	seen := make(map[string]bool, len(c.Connections))
	for i, conn := range c.Connections {
		if conn.ID == "" {
			return fmt.Errorf("connections[%d]: id is required", i)
		}
		if conn.DSN == "" {
			return fmt.Errorf("connection %q: dsn is required", conn.ID)
		}
		if err := c.Database(conn).Validate(); err != nil {
			return fmt.Errorf("connection %q: %s", conn.ID, errs.UserMessage(err))
		}
		if seen[conn.ID] {
			return fmt.Errorf("duplicate connection id %q", conn.ID)
		}
		seen[conn.ID] = true
	}
	if c.Audit.Enabled {
		if err := c.FileStore().Validate(); err != nil {
			return fmt.Errorf("audit: %s", errs.UserMessage(err))
		}
	}
	return nil
}

// Database builds the pool settings for one connection.
func (c *Config) Database(conn ConnectionConfig) *database.Config {
	return &database.Config{
		DSN:             conn.DSN,
		MaxConns:        c.Pool.MaxConns,
		MinConns:        c.Pool.MinConns,
		MaxConnLifetime: c.Pool.MaxConnLifetime,
		MaxConnIdleTime: c.Pool.MaxConnIdleTime,
		ConnectTimeout:  c.Pool.ConnectTimeout,
		QueryTimeout:    c.Pool.QueryTimeout,
		ApplicationName: database.DefaultApplicationName,
	}
}

// Logger builds the logger settings.
func (c *Config) Logger() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}

// FileStore builds the audit object store settings.
func (c *Config) FileStore() *filestore.Config {
	fc := filestore.DefaultConfig(c.Audit.Endpoint, c.Audit.AccessKey, c.Audit.SecretKey)
	fc.UseSSL = c.Audit.UseSSL
	fc.Region = c.Audit.Region
	fc.Bucket = c.Audit.Bucket
	return fc
}
