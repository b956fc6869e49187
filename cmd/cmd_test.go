package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/folder"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/loader"
	"github.com/ethpandaops/iovcalib/pkg/server"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging: warn
electronicsCalib:
  useFile: true
  fileName: /data/calib.csv
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LoggingLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.True(t, cfg.ElectronicsCalib.UseFile)
	assert.Equal(t, "/data/calib.csv", cfg.ElectronicsCalib.FileName)
	assert.Equal(t, folder.BackendClickHouse, cfg.ElectronicsCalib.DatabaseRetrievalAlg.Backend)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeFile(t, "bad.yaml", "logging: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		name    string
		begin   string
		end     string
		want    iov.Interval
		wantErr string
	}{
		{
			name:  "open ended",
			begin: "100",
			want:  iov.NewInterval(iov.NewTimestamp(100, 0), iov.MaxTimestamp()),
		},
		{
			name:  "bounded with substamps",
			begin: "100.2",
			end:   "200.5",
			want:  iov.NewInterval(iov.NewTimestamp(100, 2), iov.NewTimestamp(200, 5)),
		},
		{name: "bad begin", begin: "abc", wantErr: "invalid --begin"},
		{name: "bad end", begin: "1", end: "x.y", wantErr: "invalid --end"},
		{name: "empty interval", begin: "200", end: "200", wantErr: folder.ErrInvalidIOV.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInterval(tt.begin, tt.end)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintLookup(t *testing.T) {
	csvPath := writeFile(t, "calib.csv", "3,1.5,0.1,2.0,0.05\n1,1.25,0.2,2.5,0.07\n")
	cfgPath := writeFile(t, "config.yaml", `
electronicsCalib:
  useFile: true
  fileName: `+csvPath+"\n")

	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	p, err := server.NewProvider(context.Background(), log, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, p.Close())
	})

	t.Run("all channels", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printLookup(&out, p, nil))

		text := out.String()
		assert.Contains(t, text, "Source:     file")
		assert.Contains(t, text, "Interval:   "+iov.Forever().String())
		assert.Contains(t, text, "CHANNEL")

		lines := strings.Split(strings.TrimSpace(text), "\n")
		// header block, blank line, column titles, two rows
		require.Len(t, lines, 7)
		assert.True(t, strings.HasPrefix(lines[5], "1 "))
		assert.True(t, strings.HasPrefix(lines[6], "3 "))
		assert.Contains(t, lines[6], calib.CategoryElectronicsCalib)
	})

	t.Run("unknown channel", func(t *testing.T) {
		var out bytes.Buffer
		err := printLookup(&out, p, []calib.ChannelID{42})
		require.ErrorIs(t, err, snapshot.ErrUnknownChannel)
	})
}

func TestNewLookupProvider_RejectsIncompleteConfig(t *testing.T) {
	// Default mode without defaults or geometry
	cfg, err := LoadConfig(writeFile(t, "config.yaml", "electronicsCalib:\n  defaultGain: 1.0\n"))
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	_, err = newLookupProvider(context.Background(), log, cfg)
	require.ErrorIs(t, err, loader.ErrConfiguration)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "defaultShapingTime")
}
