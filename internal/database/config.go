package database

import (
	"net/url"
	"time"

	"github.com/koustreak/pgedit/internal/errs"
)

// DefaultApplicationName is reported to the server in pg_stat_activity.
const DefaultApplicationName = "pgedit"

// Config describes one logical connection and its pool.
type Config struct {
	DSN string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// QueryTimeout becomes the session statement_timeout. Zero leaves the
	// server default.
	QueryTimeout time.Duration

	ApplicationName string
}

// DefaultConfig sizes the pool for interactive editing: a view issues one
// query at a time, so a handful of connections is plenty.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxConns:        4,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    30 * time.Second,
		ApplicationName: DefaultApplicationName,
	}
}

// Validate rejects configs that cannot produce a pool.
func (c *Config) Validate() error {
	if c == nil || c.DSN == "" {
		return errs.New(errs.ErrKindInvalidInput, "connection has no DSN")
	}
	if c.MaxConns < 0 || c.MinConns < 0 {
		return errs.New(errs.ErrKindInvalidInput, "pool sizes must not be negative")
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return errs.Newf(errs.ErrKindInvalidInput, "min_conns (%d) exceeds max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// Redacted returns the DSN with any password masked, for logging.
func (c *Config) Redacted() string {
	u, err := url.Parse(c.DSN)
	if err != nil || u.User == nil {
		return c.DSN
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
