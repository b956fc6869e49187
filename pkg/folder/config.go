package folder

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/iovcalib/pkg/clickhouse"
	"github.com/ethpandaops/iovcalib/pkg/redis"
)

// Backend names
const (
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
	BackendRedis      = "redis"
)

var (
	// ErrUnknownBackend is returned for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown folder backend")
	// ErrFolderRequired is returned when no folder name is configured
	ErrFolderRequired = errors.New("folder name is required")
	// ErrTagRequired is returned when no tag is configured
	ErrTagRequired = errors.New("folder tag is required")
	// ErrPostgresURLRequired is returned when the postgres backend has no URL
	ErrPostgresURLRequired = errors.New("postgres url is required")
)

// Config is the database retrieval configuration forwarded to the folder collaborator
type Config struct {
	Backend       string        `yaml:"backend" default:"clickhouse"`
	Folder        string        `yaml:"folder" default:"electronicscalib"`
	Tag           string        `yaml:"tag" default:"v1"`
	// CacheTTL bounds how long a fetched payload is reused. A republished interval
	// written by another process reaches a running cache only after it moves to a
	// different interval and returns once the entry has expired; a process that
	// stays inside the interval keeps the old payload until restart.
	CacheTTL      time.Duration `yaml:"cacheTTL" default:"10m"`
	CacheCapacity uint64        `yaml:"cacheCapacity" default:"8"`

	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      redis.Config     `yaml:"redis"`
}

// ClickHouseConfig configures the ClickHouse backend
type ClickHouseConfig struct {
	clickhouse.Config `yaml:",inline"`

	// FindIOVQuery overrides the interval lookup template
	FindIOVQuery string `yaml:"findIOVQuery"`
	// FetchPayloadQuery overrides the payload template
	FetchPayloadQuery string `yaml:"fetchPayloadQuery"`
}

// PostgresConfig configures the PostgreSQL backend
type PostgresConfig struct {
	URL    string `yaml:"url"`
	Schema string `yaml:"schema" default:"conditions"`
}

// Ref returns the folder reference described by the configuration
func (c *Config) Ref() Ref {
	return Ref{Folder: c.Folder, Tag: c.Tag}
}

// Validate checks the configuration and the selected backend's block
func (c *Config) Validate() error {
	if c.Folder == "" {
		return ErrFolderRequired
	}

	if c.Tag == "" {
		return ErrTagRequired
	}

	switch c.Backend {
	case BackendClickHouse:
		if err := c.ClickHouse.Validate(); err != nil {
			return fmt.Errorf("invalid clickhouse configuration: %w", err)
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return ErrPostgresURLRequired
		}
	case BackendRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid redis configuration: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	return nil
}
