package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/iovcalib/pkg/api"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/geometry"
	"github.com/ethpandaops/iovcalib/pkg/loader"
	"github.com/ethpandaops/iovcalib/pkg/provider"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func float(v float64) *float64 {
	return &v
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return log
}

func defaultModeConfig(t *testing.T) *Config {
	t.Helper()

	cfg := &Config{}
	require.NoError(t, defaults.Set(cfg))

	cfg.ElectronicsCalib = provider.Config{
		DefaultGain:           float(1.5),
		DefaultGainErr:        float(0.1),
		DefaultShapingTime:    float(2.0),
		DefaultShapingTimeErr: float(0.05),
	}
	cfg.Geometry = geometry.Config{Planes: []geometry.PlaneConfig{
		{Name: "U", FirstChannel: 0, Wires: 4},
		{Name: "V", FirstChannel: 4, Wires: 4},
	}}

	return cfg
}

func TestConfig_YAML(t *testing.T) {
	raw := `
logging: debug
api:
  addr: ":9999"
electronicsCalib:
  useDB: true
  databaseRetrievalAlg:
    backend: redis
    folder: electronicscalib
    tag: v2
    redis:
      address: localhost:6379
geometry:
  planes:
    - name: Y
      firstChannel: 100
      wires: 10
`

	cfg := &Config{}
	require.NoError(t, defaults.Set(cfg))
	require.NoError(t, yaml.Unmarshal([]byte(raw), cfg))

	assert.Equal(t, "debug", cfg.LoggingLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, ":9999", cfg.API.Addr)
	assert.Equal(t, datasource.Database, cfg.ElectronicsCalib.Source())
	assert.Equal(t, "v2", cfg.ElectronicsCalib.DatabaseRetrievalAlg.Tag)
	assert.Equal(t, "localhost:6379", cfg.ElectronicsCalib.DatabaseRetrievalAlg.Redis.Address)
	assert.Equal(t, uint32(100), cfg.Geometry.Planes[0].FirstChannel)
	require.NoError(t, cfg.Validate())
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := &Config{API: api.Config{Enabled: true}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrConfiguration)
	assert.ErrorIs(t, err, geometry.ErrNoPlanes)
	assert.Contains(t, err.Error(), "api")
}

func TestNewServer_DefaultMode(t *testing.T) {
	srv, err := NewServer(context.Background(), testLogger(), defaultModeConfig(t))
	require.NoError(t, err)

	p := srv.Provider()
	assert.Equal(t, datasource.Default, p.DataSource())
	assert.Equal(t, 8, p.Snapshot().Len())

	gain, err := p.Gain(7)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, gain, 1e-6)
}

func TestNewServer_FileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.csv")
	require.NoError(t, os.WriteFile(path, []byte("7,2.2,0.3,1.1,0.2\n"), 0o600))

	cfg := &Config{}
	require.NoError(t, defaults.Set(cfg))
	cfg.ElectronicsCalib = provider.Config{UseFile: true, FileName: path}

	srv, err := NewServer(context.Background(), testLogger(), cfg)
	require.NoError(t, err)
	assert.Equal(t, datasource.File, srv.Provider().DataSource())
}

func TestHealthHandler(t *testing.T) {
	srv, err := NewServer(context.Background(), testLogger(), defaultModeConfig(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.healthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "default", body["source"])
	assert.InDelta(t, 8, body["channels"], 0)
}
