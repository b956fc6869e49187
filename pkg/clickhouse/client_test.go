package clickhouse

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	body     string
	database string
}

func newTestServer(t *testing.T, handler func(query string) (int, string)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []recordedRequest
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		mu.Lock()
		requests = append(requests, recordedRequest{
			body:     string(body),
			database: r.Header.Get("X-ClickHouse-Database"),
		})
		mu.Unlock()

		status, resp := handler(string(body))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)

	return srv, &requests
}

func newTestClient(t *testing.T, url string) ClientInterface {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	c, err := NewClient(log, &Config{URL: url, Database: "conditions"})
	require.NoError(t, err)

	return c
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrURLRequired)
	assert.NoError(t, (&Config{URL: "http://localhost:8123"}).Validate())
}

func TestConfig_SetDefaults(t *testing.T) {
	config := Config{URL: "http://localhost:8123"}
	config.SetDefaults()

	assert.Equal(t, 30*time.Second, config.QueryTimeout)
	assert.Equal(t, 5*time.Minute, config.InsertTimeout)
	assert.Equal(t, 30*time.Second, config.KeepAlive)
	assert.Equal(t, "conditions", config.Database)
}

func TestClient_QueryMany(t *testing.T) {
	srv, requests := newTestServer(t, func(_ string) (int, string) {
		return http.StatusOK, `{"meta":[{"name":"channel","type":"UInt32"}],"data":[{"channel":1,"name":"gain"},{"channel":2,"name":"gain"}],"rows":2}`
	})

	c := newTestClient(t, srv.URL)

	type row struct {
		Channel uint32 `json:"channel"`
		Name    string `json:"name"`
	}

	var rows []row
	require.NoError(t, c.QueryMany(context.Background(), "SELECT channel, name FROM t", &rows))

	assert.Equal(t, []row{{Channel: 1, Name: "gain"}, {Channel: 2, Name: "gain"}}, rows)
	require.Len(t, *requests, 1)
	assert.Equal(t, "SELECT channel, name FROM t FORMAT JSON", (*requests)[0].body)
	assert.Equal(t, "conditions", (*requests)[0].database)
}

func TestClient_QueryManyRejectsNonSlice(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	var notSlice struct{}
	assert.ErrorIs(t, c.QueryMany(context.Background(), "SELECT 1", &notSlice), ErrDestMustBePointerToSlice)
}

func TestClient_ErrorResponse(t *testing.T) {
	srv, _ := newTestServer(t, func(_ string) (int, string) {
		return http.StatusInternalServerError, "Code: 60. DB::Exception: Table conditions.missing doesn't exist"
	})

	c := newTestClient(t, srv.URL)

	_, err := c.Execute(context.Background(), "SELECT * FROM missing")
	require.ErrorIs(t, err, ErrClickHouseResponse)
	assert.Contains(t, err.Error(), "doesn't exist")
}

func TestClient_BulkInsert(t *testing.T) {
	srv, requests := newTestServer(t, func(_ string) (int, string) {
		return http.StatusOK, ""
	})

	c := newTestClient(t, srv.URL)

	type row struct {
		Channel uint32  `json:"channel"`
		Value   float64 `json:"value"`
	}

	require.NoError(t, c.BulkInsert(context.Background(), "conditions.t", []row{{1, 1.5}, {2, 2.5}}))
	require.NoError(t, c.BulkInsert(context.Background(), "conditions.t", []row{}))
	assert.ErrorIs(t, c.BulkInsert(context.Background(), "conditions.t", row{}), ErrDataMustBeSlice)

	require.Len(t, *requests, 1, "empty inserts must not hit the server")

	lines := strings.Split(strings.TrimSpace((*requests)[0].body), "\n")
	assert.Equal(t, []string{
		"INSERT INTO conditions.t FORMAT JSONEachRow",
		`{"channel":1,"value":1.5}`,
		`{"channel":2,"value":2.5}`,
	}, lines)
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "SELECT 1", truncateQuery("SELECT 1"))
	assert.Equal(t, strings.Repeat("a", 500)+"...", truncateQuery(strings.Repeat("a", 600)))
}
