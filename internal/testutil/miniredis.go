package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethpandaops/iovcalib/pkg/redis"
	r "github.com/redis/go-redis/v9"
)

// NewMiniredisFolder starts an in-memory Redis for folder unit tests (no Docker needed).
// It returns the server, a connected client and a folder Redis config pointing at it
// under prefix. Everything is closed when the test completes.
func NewMiniredisFolder(t *testing.T, prefix string) (*miniredis.Miniredis, *r.Client, *redis.Config) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := &redis.Config{Address: mr.Addr(), Prefix: prefix}

	client, err := redis.New(cfg)
	if err != nil {
		t.Fatalf("failed to create miniredis client: %v", err)
	}

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("failed to close miniredis client: %v", err)
		}
	})

	return mr, client, cfg
}
