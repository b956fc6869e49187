// Package testutil provides test helpers for iovcalib folder backends:
//   - ClickHouse, PostgreSQL and Redis containers for integration tests
//   - Miniredis helpers for unit tests (miniredis.go)
//
// Container helpers require Docker and are gated behind the "integration"
// build tag. To run integration tests:
//
//	go test -tags=integration ./...
//
// Unit test helpers (miniredis) do not require Docker and work with regular tests.
package testutil
