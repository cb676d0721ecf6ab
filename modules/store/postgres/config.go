package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/tgrelay/internal/store"
)

const (
	defaultMaxOpenConns   = 4
	defaultConnectTimeout = 5 * time.Second
)

// Config holds the PostgreSQL message log configuration.
type Config struct {
	// DSN is a lib/pq connection string or URL.
	DSN string `yaml:"dsn"`

	MaxOpenConns   int           `yaml:"max_open_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	store.Retention `yaml:",inline"`
}

func (c *Config) defaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
}

func (c *Config) validate() error {
	if c.DSN == "" {
		return errors.New("postgres: dsn is required")
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("postgres: max_open_conns must be positive, got %d", c.MaxOpenConns)
	}
	return c.Retention.Validate("postgres")
}
