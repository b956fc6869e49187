// Package snapshot provides the immutable, interval-bounded table of calibration records
package snapshot

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/google/uuid"
)

var (
	// ErrUnknownChannel is returned when a channel has no row in the snapshot
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrInvalidInterval is returned when an interval does not satisfy begin < end
	ErrInvalidInterval = errors.New("invalid interval of validity")
)

// Snapshot maps channel ids to calibration records for a single interval of validity.
// A Snapshot never changes after Build; refreshes produce a new one.
type Snapshot struct {
	interval   iov.Interval
	rows       map[calib.ChannelID]calib.Record
	generation uuid.UUID
}

// Interval returns the interval of validity shared by every row
func (s *Snapshot) Interval() iov.Interval {
	return s.interval
}

// Begin returns the start of the interval of validity
func (s *Snapshot) Begin() iov.Timestamp {
	return s.interval.Begin
}

// End returns the end of the interval of validity
func (s *Snapshot) End() iov.Timestamp {
	return s.interval.End
}

// IsValid reports whether ts falls within the snapshot's interval of validity
func (s *Snapshot) IsValid(ts iov.Timestamp) bool {
	return s.interval.Contains(ts)
}

// Generation identifies the build that produced this snapshot
func (s *Snapshot) Generation() uuid.UUID {
	return s.generation
}

// Row returns the record for ch
func (s *Snapshot) Row(ch calib.ChannelID) (calib.Record, error) {
	rec, ok := s.rows[ch]
	if !ok {
		return calib.Record{}, fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}

	return rec, nil
}

// HasChannel reports whether ch has a row
func (s *Snapshot) HasChannel(ch calib.ChannelID) bool {
	_, ok := s.rows[ch]

	return ok
}

// Channels returns all channel ids in ascending order
func (s *Snapshot) Channels() []calib.ChannelID {
	return slices.Sorted(maps.Keys(s.rows))
}

// Len returns the number of rows
func (s *Snapshot) Len() int {
	return len(s.rows)
}

// Empty reports whether the snapshot has no rows
func (s *Snapshot) Empty() bool {
	return len(s.rows) == 0
}

// Builder assembles a Snapshot off to the side of any published one.
// The zero value is not usable; call NewBuilder.
type Builder struct {
	interval iov.Interval
	rows     map[calib.ChannelID]calib.Record
}

// NewBuilder returns a cleared builder with the forever interval
func NewBuilder() *Builder {
	b := &Builder{}
	b.Clear()

	return b
}

// Clear drops all rows and resets the interval to forever
func (b *Builder) Clear() {
	b.interval = iov.Forever()
	b.rows = make(map[calib.ChannelID]calib.Record)
}

// SetIoV sets the interval of validity; begin must be strictly before end
func (b *Builder) SetIoV(begin, end iov.Timestamp) error {
	interval := iov.NewInterval(begin, end)
	if !interval.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	b.interval = interval

	return nil
}

// AddOrReplaceRow inserts rec under its own channel, replacing any earlier row
func (b *Builder) AddOrReplaceRow(rec calib.Record) {
	b.rows[rec.Channel] = rec
}

// Len returns the number of rows added so far
func (b *Builder) Len() int {
	return len(b.rows)
}

// Build returns a new Snapshot holding a copy of the builder's state.
// The builder can keep being used without affecting the returned Snapshot.
func (b *Builder) Build() *Snapshot {
	return &Snapshot{
		interval:   b.interval,
		rows:       maps.Clone(b.rows),
		generation: uuid.New(),
	}
}

// Empty returns a snapshot with no rows and the forever interval
func Empty() *Snapshot {
	return NewBuilder().Build()
}
