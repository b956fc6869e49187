// Package provider serves per-channel electronics calibrations for the current interval of validity.
//
// A Provider owns exactly one published snapshot. Readers load it without locking;
// refreshes build a replacement off to the side and publish it with a single
// atomic store, so a reader never sees rows from one interval with the bounds of another.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/folder"
	"github.com/ethpandaops/iovcalib/pkg/geometry"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/loader"
	"github.com/ethpandaops/iovcalib/pkg/observability"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

// Refresh outcomes recorded in metrics
const (
	resultUpdated   = "updated"
	resultUnchanged = "unchanged"
	resultError     = "error"
)

// Dependencies are the external collaborators of a Provider.
// Folder is used in database mode; when nil it is opened from the configuration.
// Channels is used in default mode.
type Dependencies struct {
	Folder   folder.Folder
	Channels geometry.ChannelEnumerator
}

// Provider is the calibration cache
type Provider struct {
	log    logrus.FieldLogger
	source datasource.Source
	loader loader.Loader
	closer io.Closer

	// mu serialises writers; readers only touch current
	mu      sync.Mutex
	current atomic.Pointer[snapshot.Snapshot]
}

// New selects the acquisition mode, builds its loader and publishes the initial snapshot.
// Any error here is fatal for the cache.
func New(ctx context.Context, log logrus.FieldLogger, cfg *Config, deps Dependencies) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	source := cfg.Source()

	p := &Provider{
		log:    log.WithFields(logrus.Fields{"component": "provider", "source": source.String()}),
		source: source,
	}

	l, err := p.newLoader(ctx, log, cfg, deps)
	if err != nil {
		return nil, err
	}

	p.loader = l

	initial, err := l.Initial(ctx)
	if err != nil {
		_ = p.Close()

		return nil, fmt.Errorf("failed to load initial %s snapshot: %w", source, err)
	}

	p.publish(initial)

	p.log.WithFields(logrus.Fields{
		"channels": initial.Len(),
		"interval": initial.Interval().String(),
	}).Info("Calibration provider ready")

	return p, nil
}

func (p *Provider) newLoader(ctx context.Context, log logrus.FieldLogger, cfg *Config, deps Dependencies) (loader.Loader, error) {
	switch p.source {
	case datasource.Database:
		f := deps.Folder
		if f == nil {
			opened, err := folder.Open(ctx, log, &cfg.DatabaseRetrievalAlg)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", loader.ErrConfiguration, err)
			}

			f = opened
			p.closer = opened
		}

		return loader.NewDatabaseLoader(log, f)
	case datasource.File:
		return loader.NewFileLoader(log, cfg.FileName), nil
	default:
		return loader.NewDefaultLoader(log, cfg.Defaults(), deps.Channels)
	}
}

// Update makes the cache current for ts and reports whether the published snapshot changed.
// Default and file modes never change. A failed refresh keeps the last good snapshot.
func (p *Provider) Update(ctx context.Context, ts iov.Timestamp) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	current := p.current.Load()

	next, updated, err := p.loader.Refresh(ctx, ts, current)

	result := resultUnchanged

	switch {
	case err != nil:
		result = resultError
	case updated:
		result = resultUpdated
	}

	observability.RecordRefresh(p.source.String(), result, time.Since(start).Seconds())

	if err != nil {
		observability.RecordError("provider", "refresh")
		p.log.WithError(err).WithFields(logrus.Fields{
			"timestamp": ts.String(),
			"interval":  current.Interval().String(),
		}).Warn("Refresh failed, keeping last good snapshot")

		return false, err
	}

	if !updated {
		return false, nil
	}

	p.publish(next)

	p.log.WithFields(logrus.Fields{
		"timestamp": ts.String(),
		"interval":  next.Interval().String(),
		"channels":  next.Len(),
	}).Info("Published new calibration snapshot")

	return true, nil
}

func (p *Provider) publish(s *snapshot.Snapshot) {
	p.current.Store(s)
	observability.RecordSnapshotPublished(p.source.String(), s.Len(), s.Begin().Stamp)
}

// Snapshot returns the currently published snapshot
func (p *Provider) Snapshot() *snapshot.Snapshot {
	return p.current.Load()
}

// DataSource returns the acquisition mode chosen at construction
func (p *Provider) DataSource() datasource.Source {
	return p.source
}

// ElectronicsCalib returns the full record for ch from the published snapshot
func (p *Provider) ElectronicsCalib(ch calib.ChannelID) (calib.Record, error) {
	rec, err := p.current.Load().Row(ch)
	if err != nil {
		if errors.Is(err, snapshot.ErrUnknownChannel) {
			observability.RecordLookup("unknown_channel")
		}

		return calib.Record{}, err
	}

	observability.RecordLookup("hit")

	return rec, nil
}

// Gain returns the gain of ch
func (p *Provider) Gain(ch calib.ChannelID) (float32, error) {
	rec, err := p.ElectronicsCalib(ch)

	return rec.Gain, err
}

// GainErr returns the gain uncertainty of ch
func (p *Provider) GainErr(ch calib.ChannelID) (float32, error) {
	rec, err := p.ElectronicsCalib(ch)

	return rec.GainErr, err
}

// ShapingTime returns the shaping time of ch
func (p *Provider) ShapingTime(ch calib.ChannelID) (float32, error) {
	rec, err := p.ElectronicsCalib(ch)

	return rec.ShapingTime, err
}

// ShapingTimeErr returns the shaping time uncertainty of ch
func (p *Provider) ShapingTimeErr(ch calib.ChannelID) (float32, error) {
	rec, err := p.ElectronicsCalib(ch)

	return rec.ShapingTimeErr, err
}

// ExtraInfo returns the provenance tag of ch
func (p *Provider) ExtraInfo(ch calib.ChannelID) (calib.ExtraInfo, error) {
	rec, err := p.ElectronicsCalib(ch)

	return rec.ExtraInfo, err
}

// Close releases a folder opened by the provider itself.
// Injected collaborators are left to their owners.
func (p *Provider) Close() error {
	if p.closer == nil {
		return nil
	}

	return p.closer.Close()
}
