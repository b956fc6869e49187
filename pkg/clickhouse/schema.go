package clickhouse

import (
	"context"
	"fmt"
	"strings"
)

type tableCount struct {
	Count uint64 `json:"count,string"`
}

// quote renders s as a single-quoted ClickHouse string literal
func quote(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}

// TableExists checks if a table exists in the given database
func TableExists(ctx context.Context, client ClientInterface, database, table string) (bool, error) {
	query := fmt.Sprintf(`SELECT count() AS count
FROM system.tables
WHERE database = %s AND name = %s`, quote(database), quote(table))

	var rows []tableCount
	if err := client.QueryMany(ctx, query, &rows); err != nil {
		return false, err
	}

	return len(rows) > 0 && rows[0].Count > 0, nil
}

// EnsureTable creates database.table from ddl when it does not exist yet.
// It reports whether the table was created.
func EnsureTable(ctx context.Context, client ClientInterface, database, table, ddl string) (bool, error) {
	exists, err := TableExists(ctx, client, database, table)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s.%s: %w", database, table, err)
	}

	if exists {
		return false, nil
	}

	if _, err := client.Execute(ctx, "CREATE DATABASE IF NOT EXISTS "+database); err != nil {
		return false, fmt.Errorf("failed to create database %s: %w", database, err)
	}

	if _, err := client.Execute(ctx, ddl); err != nil {
		return false, fmt.Errorf("failed to create table %s.%s: %w", database, table, err)
	}

	return true, nil
}
