// Package geometry enumerates the readout channels of the detector
package geometry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethpandaops/iovcalib/pkg/calib"
)

var (
	// ErrNoPlanes is returned when the geometry has no wire planes
	ErrNoPlanes = errors.New("geometry must define at least one plane")
	// ErrZeroWires is returned when a plane has no wires
	ErrZeroWires = errors.New("plane must have at least one wire")
	// ErrChannelOverflow is returned when a plane's channels exceed the channel id range
	ErrChannelOverflow = errors.New("plane channel range overflows channel id")
)

// ChannelEnumerator lists every valid channel id
type ChannelEnumerator interface {
	Channels(ctx context.Context) ([]calib.ChannelID, error)
}

// PlaneConfig describes one wire plane and where its channels start
type PlaneConfig struct {
	Name         string `yaml:"name"`
	FirstChannel uint32 `yaml:"firstChannel"`
	Wires        uint32 `yaml:"wires"`
}

// Config lists the wire planes of the detector
type Config struct {
	Planes []PlaneConfig `yaml:"planes"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Planes) == 0 {
		return ErrNoPlanes
	}

	for i, p := range c.Planes {
		if p.Wires == 0 {
			return fmt.Errorf("%w: plane %d (%s)", ErrZeroWires, i, p.Name)
		}

		if uint64(p.FirstChannel)+uint64(p.Wires)-1 > math.MaxUint32 {
			return fmt.Errorf("%w: plane %d (%s)", ErrChannelOverflow, i, p.Name)
		}
	}

	return nil
}

// Static enumerates channels from a fixed plane layout
type Static struct {
	planes []PlaneConfig
}

// NewStatic creates an enumerator for the configured planes
func NewStatic(cfg *Config) (*Static, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Static{planes: slices.Clone(cfg.Planes)}, nil
}

// PlaneWireToChannel maps a wire in a plane to its readout channel
func PlaneWireToChannel(p PlaneConfig, wire uint32) calib.ChannelID {
	return calib.ChannelID(p.FirstChannel + wire)
}

// Channels returns every distinct channel across all planes in ascending order.
// Wires of different planes may share a channel; it is listed once.
func (s *Static) Channels(ctx context.Context) ([]calib.ChannelID, error) {
	channels := mapset.NewThreadUnsafeSet[calib.ChannelID]()

	for _, p := range s.planes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for wire := uint32(0); wire < p.Wires; wire++ {
			channels.Add(PlaneWireToChannel(p, wire))
		}
	}

	out := channels.ToSlice()
	slices.Sort(out)

	return out, nil
}

// Fixed enumerates an explicit list of channels
type Fixed []calib.ChannelID

// Channels returns the list as-is
func (f Fixed) Channels(_ context.Context) ([]calib.ChannelID, error) {
	return slices.Clone(f), nil
}
