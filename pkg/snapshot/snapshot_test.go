package snapshot

import (
	"testing"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(ch calib.ChannelID, gain float32) calib.Record {
	rec := calib.NewElectronicsCalib(ch)
	rec.Gain = gain

	return rec
}

func TestBuilder_StartsClearedWithForeverInterval(t *testing.T) {
	snap := NewBuilder().Build()

	assert.True(t, snap.Empty())
	assert.Equal(t, iov.Forever(), snap.Interval())
	assert.True(t, snap.Interval().Valid())
}

func TestBuilder_SetIoV(t *testing.T) {
	tests := []struct {
		name       string
		begin, end iov.Timestamp
		wantErr    bool
	}{
		{name: "valid", begin: iov.NewTimestamp(10, 0), end: iov.NewTimestamp(20, 0)},
		{name: "equal bounds", begin: iov.NewTimestamp(10, 0), end: iov.NewTimestamp(10, 0), wantErr: true},
		{name: "reversed", begin: iov.NewTimestamp(20, 0), end: iov.NewTimestamp(10, 0), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			err := b.SetIoV(tt.begin, tt.end)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInterval)
				assert.Equal(t, iov.Forever(), b.Build().Interval(), "failed SetIoV must not change the interval")
				return
			}

			require.NoError(t, err)
			snap := b.Build()
			assert.Equal(t, tt.begin, snap.Begin())
			assert.Equal(t, tt.end, snap.End())
		})
	}
}

func TestBuilder_AddOrReplaceRow_LastWins(t *testing.T) {
	b := NewBuilder()
	b.AddOrReplaceRow(record(5, 1.0))
	b.AddOrReplaceRow(record(5, 2.0))

	snap := b.Build()
	require.Equal(t, 1, snap.Len())

	rec, err := snap.Row(5)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, rec.Gain, 1e-6)
}

func TestSnapshot_RowKeyMatchesChannel(t *testing.T) {
	b := NewBuilder()
	for _, ch := range []calib.ChannelID{3, 1, 2} {
		b.AddOrReplaceRow(record(ch, float32(ch)))
	}

	snap := b.Build()
	assert.Equal(t, []calib.ChannelID{1, 2, 3}, snap.Channels())

	for _, ch := range snap.Channels() {
		rec, err := snap.Row(ch)
		require.NoError(t, err)
		assert.Equal(t, ch, rec.Channel)
	}
}

func TestSnapshot_UnknownChannel(t *testing.T) {
	b := NewBuilder()
	for _, ch := range []calib.ChannelID{1, 2, 3} {
		b.AddOrReplaceRow(record(ch, 1))
	}

	snap := b.Build()

	_, err := snap.Row(99999)
	require.ErrorIs(t, err, ErrUnknownChannel)
	assert.False(t, snap.HasChannel(99999))
}

func TestBuilder_BuildIsolatesPublishedSnapshot(t *testing.T) {
	b := NewBuilder()
	b.AddOrReplaceRow(record(1, 1))
	first := b.Build()

	b.Clear()
	b.AddOrReplaceRow(record(2, 2))
	require.NoError(t, b.SetIoV(iov.NewTimestamp(1, 0), iov.NewTimestamp(2, 0)))
	second := b.Build()

	assert.True(t, first.HasChannel(1))
	assert.False(t, first.HasChannel(2))
	assert.Equal(t, iov.Forever(), first.Interval())

	assert.False(t, second.HasChannel(1))
	assert.True(t, second.HasChannel(2))
	assert.NotEqual(t, first.Generation(), second.Generation())
}

func TestSnapshot_IsValid(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetIoV(iov.NewTimestamp(100, 0), iov.NewTimestamp(200, 0)))
	snap := b.Build()

	assert.True(t, snap.IsValid(iov.NewTimestamp(100, 0)))
	assert.False(t, snap.IsValid(iov.NewTimestamp(200, 0)))
	assert.True(t, Empty().IsValid(iov.MaxTimestamp()))
}
