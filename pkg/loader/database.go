package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/folder"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

// DatabaseLoader rebuilds snapshots from a conditions folder
type DatabaseLoader struct {
	log    logrus.FieldLogger
	folder folder.Folder

	mu sync.Mutex
	// stale is set when the folder moved but building its snapshot failed.
	// The folder then reports no change for the same interval, so the next
	// refresh must rebuild anyway.
	stale bool
}

// NewDatabaseLoader creates a loader reading from f
func NewDatabaseLoader(log logrus.FieldLogger, f folder.Folder) (*DatabaseLoader, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: a folder is required in database mode", ErrConfiguration)
	}

	return &DatabaseLoader{
		log:    log.WithField("loader", datasource.Database.String()),
		folder: f,
	}, nil
}

// Source implements Loader
func (l *DatabaseLoader) Source() datasource.Source {
	return datasource.Database
}

// Initial returns an empty snapshot; rows arrive with the first refresh
func (l *DatabaseLoader) Initial(_ context.Context) (*snapshot.Snapshot, error) {
	return snapshot.Empty(), nil
}

// Refresh makes the folder current for ts and rebuilds the snapshot when its data changed.
// On error current stays the published snapshot.
func (l *DatabaseLoader) Refresh(ctx context.Context, ts iov.Timestamp, current *snapshot.Snapshot) (*snapshot.Snapshot, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	updated, err := l.folder.UpdateFolder(ctx, ts)
	if err != nil {
		return current, false, fmt.Errorf("failed to update folder for %s: %w", ts, err)
	}

	if !updated && !l.stale {
		return current, false, nil
	}

	next, err := l.build()
	if err != nil {
		l.stale = true

		return current, false, err
	}

	l.stale = false

	l.log.WithFields(logrus.Fields{
		"timestamp":  ts.String(),
		"interval":   next.Interval().String(),
		"channels":   next.Len(),
		"generation": next.Generation().String(),
	}).Debug("Rebuilt snapshot from folder")

	return next, true, nil
}

func (l *DatabaseLoader) build() (*snapshot.Snapshot, error) {
	b := snapshot.NewBuilder()

	interval := l.folder.CurrentInterval()
	if err := b.SetIoV(interval.Begin, interval.End); err != nil {
		return nil, err
	}

	for _, ch := range l.folder.ChannelList() {
		rec := calib.NewElectronicsCalib(ch)

		for _, target := range []struct {
			name  string
			value *float32
		}{
			{calib.FieldGain, &rec.Gain},
			{calib.FieldGainErr, &rec.GainErr},
			{calib.FieldShapingTime, &rec.ShapingTime},
			{calib.FieldShapingTimeErr, &rec.ShapingTimeErr},
		} {
			v, err := l.folder.GetNamedChannelData(ch, target.name)
			if err != nil {
				return nil, err
			}

			*target.value = float32(v)
		}

		b.AddOrReplaceRow(rec)
	}

	return b.Build(), nil
}
