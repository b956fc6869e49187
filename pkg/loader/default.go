package loader

import (
	"context"
	"fmt"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/geometry"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Defaults are the fallback calibration values applied to every channel.
// A nil field means the value was not configured.
type Defaults struct {
	Gain           *float64
	GainErr        *float64
	ShapingTime    *float64
	ShapingTimeErr *float64
}

// Validate reports every missing default at once
func (d Defaults) Validate() error {
	var result *multierror.Error

	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"defaultGain", d.Gain},
		{"defaultGainErr", d.GainErr},
		{"defaultShapingTime", d.ShapingTime},
		{"defaultShapingTimeErr", d.ShapingTimeErr},
	} {
		if f.value == nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s is required in default mode", ErrConfiguration, f.name))
		}
	}

	return result.ErrorOrNil()
}

// DefaultLoader fills every geometry channel with the same default record
type DefaultLoader struct {
	log      logrus.FieldLogger
	defaults Defaults
	channels geometry.ChannelEnumerator
}

// NewDefaultLoader validates the defaults and the channel source
func NewDefaultLoader(log logrus.FieldLogger, defaults Defaults, channels geometry.ChannelEnumerator) (*DefaultLoader, error) {
	var result *multierror.Error

	if err := defaults.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if channels == nil {
		result = multierror.Append(result, fmt.Errorf("%w: a channel enumerator is required in default mode", ErrConfiguration))
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &DefaultLoader{
		log:      log.WithField("loader", datasource.Default.String()),
		defaults: defaults,
		channels: channels,
	}, nil
}

// Source implements Loader
func (l *DefaultLoader) Source() datasource.Source {
	return datasource.Default
}

// Initial builds one identical record per enumerated channel, valid forever
func (l *DefaultLoader) Initial(ctx context.Context) (*snapshot.Snapshot, error) {
	channels, err := l.channels.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate channels: %w", err)
	}

	b := snapshot.NewBuilder()

	for _, ch := range channels {
		rec := calib.NewElectronicsCalib(ch)
		rec.Gain = float32(*l.defaults.Gain)
		rec.GainErr = float32(*l.defaults.GainErr)
		rec.ShapingTime = float32(*l.defaults.ShapingTime)
		rec.ShapingTimeErr = float32(*l.defaults.ShapingTimeErr)

		b.AddOrReplaceRow(rec)
	}

	l.log.WithField("channels", b.Len()).Info("Loaded default calibrations")

	return b.Build(), nil
}

// Refresh is a no-op; default values never change
func (l *DefaultLoader) Refresh(_ context.Context, _ iov.Timestamp, current *snapshot.Snapshot) (*snapshot.Snapshot, bool, error) {
	return current, false, nil
}
