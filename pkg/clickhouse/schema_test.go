package clickhouse

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableExists(t *testing.T) {
	tests := []struct {
		name  string
		count string
		want  bool
	}{
		{name: "present", count: `{"data":[{"count":"1"}]}`, want: true},
		{name: "absent", count: `{"data":[{"count":"0"}]}`, want: false},
		{name: "no rows", count: `{"data":[]}`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requests := newTestServer(t, func(string) (int, string) {
				return http.StatusOK, tt.count
			})

			exists, err := TableExists(context.Background(), newTestClient(t, srv.URL), "conditions", "o'brien")
			require.NoError(t, err)
			assert.Equal(t, tt.want, exists)

			require.Len(t, *requests, 1)
			assert.Contains(t, (*requests)[0].body, "database = 'conditions'")
			assert.Contains(t, (*requests)[0].body, `name = 'o\'brien'`)
		})
	}
}

func TestEnsureTable(t *testing.T) {
	const ddl = "CREATE TABLE IF NOT EXISTS conditions.x_iovs (tag String) ENGINE = MergeTree ORDER BY tag"

	t.Run("creates missing table", func(t *testing.T) {
		srv, requests := newTestServer(t, func(query string) (int, string) {
			if strings.Contains(query, "system.tables") {
				return http.StatusOK, `{"data":[{"count":"0"}]}`
			}

			return http.StatusOK, ""
		})

		created, err := EnsureTable(context.Background(), newTestClient(t, srv.URL), "conditions", "x_iovs", ddl)
		require.NoError(t, err)
		assert.True(t, created)

		require.Len(t, *requests, 3)
		assert.Equal(t, "CREATE DATABASE IF NOT EXISTS conditions", (*requests)[1].body)
		assert.Equal(t, ddl, (*requests)[2].body)
	})

	t.Run("leaves existing table alone", func(t *testing.T) {
		srv, requests := newTestServer(t, func(string) (int, string) {
			return http.StatusOK, `{"data":[{"count":"1"}]}`
		})

		created, err := EnsureTable(context.Background(), newTestClient(t, srv.URL), "conditions", "x_iovs", ddl)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Len(t, *requests, 1)
	})

	t.Run("ddl failure", func(t *testing.T) {
		srv, _ := newTestServer(t, func(query string) (int, string) {
			if strings.Contains(query, "system.tables") {
				return http.StatusOK, `{"data":[{"count":"0"}]}`
			}

			if strings.HasPrefix(query, "CREATE TABLE") {
				return http.StatusInternalServerError, "Code: 62. Syntax error"
			}

			return http.StatusOK, ""
		})

		_, err := EnsureTable(context.Background(), newTestClient(t, srv.URL), "conditions", "x_iovs", ddl)
		require.ErrorIs(t, err, ErrClickHouseResponse)
		assert.Contains(t, err.Error(), "conditions.x_iovs")
	})
}
