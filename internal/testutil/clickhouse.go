//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

// NewClickHouseContainer starts a ClickHouse container and returns the URL of its HTTP interface.
// The container is automatically terminated when the test completes.
func NewClickHouseContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:25.5.10",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("test_password"),
		clickhouse.WithDatabase("conditions"),
	)
	if err != nil {
		t.Fatalf("failed to start ClickHouse container: %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "8123/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	return fmt.Sprintf("http://default:test_password@%s:%s", host, port.Port())
}
