package folder

import (
	"context"
	"fmt"

	"github.com/ethpandaops/iovcalib/pkg/clickhouse"
	"github.com/ethpandaops/iovcalib/pkg/redis"
	"github.com/sirupsen/logrus"
)

// NewBackend creates the backend selected by cfg.Backend
func NewBackend(ctx context.Context, log logrus.FieldLogger, cfg *Config) (Backend, error) {
	switch cfg.Backend {
	case BackendClickHouse:
		client, err := clickhouse.NewClient(log, &cfg.ClickHouse.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to create clickhouse client: %w", err)
		}

		return newClickHouseBackend(log, client, &cfg.ClickHouse), nil
	case BackendPostgres:
		return newPostgresBackend(ctx, &cfg.Postgres)
	case BackendRedis:
		client, err := redis.New(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		return newRedisBackend(client, &cfg.Redis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Open validates cfg and returns a cached folder over the configured backend
func Open(ctx context.Context, log logrus.FieldLogger, cfg *Config) (*CachedFolder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := NewBackend(ctx, log, cfg)
	if err != nil {
		return nil, err
	}

	return NewCachedFolder(log, cfg.Backend, backend, cfg.Ref(), cfg.CacheTTL, cfg.CacheCapacity), nil
}
