//go:build integration

package folder

import (
	"context"
	"testing"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/iovcalib/internal/testutil"
	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type integrationBackend struct {
	name      string
	configure func(t *testing.T, cfg *Config)
}

func integrationBackends() []integrationBackend {
	return []integrationBackend{
		{
			name: BackendClickHouse,
			configure: func(t *testing.T, cfg *Config) {
				cfg.ClickHouse.URL = testutil.NewClickHouseContainer(t)
			},
		},
		{
			name: BackendPostgres,
			configure: func(t *testing.T, cfg *Config) {
				cfg.Postgres.URL = testutil.NewPostgresContainer(t)
			},
		},
		{
			name: BackendRedis,
			configure: func(t *testing.T, cfg *Config) {
				cfg.Redis.Address = testutil.NewRedisContainer(t)
			},
		},
	}
}

func openIntegrationFolder(t *testing.T, backend integrationBackend) *CachedFolder {
	t.Helper()

	var cfg Config
	require.NoError(t, defaults.Set(&cfg))

	cfg.Backend = backend.name
	backend.configure(t, &cfg)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	f, err := Open(context.Background(), log, &cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close())
	})

	return f
}

func TestBackends_Integration(t *testing.T) {
	for _, tt := range integrationBackends() {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := openIntegrationFolder(t, tt)

			openEnded := iov.NewInterval(iov.NewTimestamp(200, 0), iov.MaxTimestamp())

			require.NoError(t, f.Store(ctx, firstIOV, firstData))
			require.NoError(t, f.Store(ctx, openEnded, secondData))

			_, err := f.UpdateFolder(ctx, iov.NewTimestamp(50, 0))
			require.ErrorIs(t, err, ErrNoIOV)

			updated, err := f.UpdateFolder(ctx, iov.NewTimestamp(150, 3))
			require.NoError(t, err)
			assert.True(t, updated)
			assert.Equal(t, firstIOV, f.CurrentInterval())
			assert.Equal(t, firstData.Channels(), f.ChannelList())

			gain, err := f.GetNamedChannelData(1, calib.FieldGain)
			require.NoError(t, err)
			assert.InDelta(t, firstData[1][calib.FieldGain], gain, 1e-9)

			updated, err = f.UpdateFolder(ctx, iov.NewTimestamp(1_000_000, 0))
			require.NoError(t, err)
			assert.True(t, updated)
			assert.Equal(t, openEnded, f.CurrentInterval())

			assert.Equal(t, secondData.Channels(), f.ChannelList())

			gain, err = f.GetNamedChannelData(3, calib.FieldGain)
			require.NoError(t, err)
			assert.InDelta(t, secondData[3][calib.FieldGain], gain, 1e-9)

			updated, err = f.UpdateFolder(ctx, iov.NewTimestamp(250, 0))
			require.NoError(t, err)
			assert.False(t, updated)
		})
	}
}

func TestBackends_RepublishReplaces_Integration(t *testing.T) {
	for _, tt := range integrationBackends() {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := openIntegrationFolder(t, tt)

			require.NoError(t, f.Store(ctx, firstIOV, firstData))
			require.NoError(t, f.Store(ctx, firstIOV, Payload{1: {calib.FieldGain: 9}}))

			updated, err := f.UpdateFolder(ctx, iov.NewTimestamp(150, 0))
			require.NoError(t, err)
			assert.True(t, updated)
			assert.Equal(t, firstIOV, f.CurrentInterval())
			assert.Equal(t, []calib.ChannelID{1}, f.ChannelList())

			gain, err := f.GetNamedChannelData(1, calib.FieldGain)
			require.NoError(t, err)
			assert.InDelta(t, 9, gain, 1e-9)

			extended := iov.NewInterval(firstIOV.Begin, iov.MaxTimestamp())
			require.NoError(t, f.Store(ctx, extended, secondData))

			updated, err = f.UpdateFolder(ctx, iov.NewTimestamp(250, 0))
			require.NoError(t, err)
			assert.True(t, updated)
			assert.Equal(t, extended, f.CurrentInterval())
			assert.Equal(t, secondData.Channels(), f.ChannelList())
		})
	}
}
