// Package folder provides access to calibration folders in the conditions database.
//
// A folder is a versioned table of named per-channel values. Each version is stored
// under an interval of validity; a Folder tracks the version covering the most
// recently requested timestamp and exposes its values.
package folder

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
)

var (
	// ErrMissingField is returned when a channel lacks a requested named field
	ErrMissingField = errors.New("missing field")
	// ErrNoIOV is returned when no stored interval covers the requested timestamp
	ErrNoIOV = errors.New("no interval of validity covers timestamp")
	// ErrInvalidIOV is returned when a backend yields an interval with begin >= end
	ErrInvalidIOV = errors.New("backend returned invalid interval of validity")
	// ErrNotLoaded is returned when folder data is read before any successful update
	ErrNotLoaded = errors.New("folder has not been loaded")
)

// Folder is the database collaborator consumed by the database loader
type Folder interface {
	// UpdateFolder makes the folder current for ts and reports whether its data changed
	UpdateFolder(ctx context.Context, ts iov.Timestamp) (bool, error)
	// CurrentInterval returns the interval of validity of the loaded data
	CurrentInterval() iov.Interval
	// ChannelList returns the channels present in the loaded data, ascending
	ChannelList() []calib.ChannelID
	// GetNamedChannelData returns one named value for a channel
	GetNamedChannelData(ch calib.ChannelID, name string) (float64, error)
}

// Ref addresses one tagged folder
type Ref struct {
	Folder string
	Tag    string
}

// Payload holds the named values of every channel for one interval of validity
type Payload map[calib.ChannelID]map[string]float64

// PayloadFromRecords converts calibration records into a folder payload
func PayloadFromRecords(records []calib.Record) Payload {
	payload := make(Payload, len(records))

	for _, rec := range records {
		fields := make(map[string]float64, len(calib.FieldNames()))
		for _, name := range calib.FieldNames() {
			v, _ := rec.Field(name)
			fields[name] = v
		}

		payload[rec.Channel] = fields
	}

	return payload
}

// Set stores one named value, creating the channel entry if needed
func (p Payload) Set(ch calib.ChannelID, name string, value float64) {
	fields, ok := p[ch]
	if !ok {
		fields = make(map[string]float64)
		p[ch] = fields
	}

	fields[name] = value
}

// Channels returns the payload's channels in ascending order
func (p Payload) Channels() []calib.ChannelID {
	return slices.Sorted(maps.Keys(p))
}

// Backend is a storage engine holding folder intervals and payloads
type Backend interface {
	// FindIOV returns the latest interval beginning at or before ts
	FindIOV(ctx context.Context, ref Ref, ts iov.Timestamp) (iov.Interval, error)
	// FetchPayload returns the values stored for an interval
	FetchPayload(ctx context.Context, ref Ref, interval iov.Interval) (Payload, error)
	// StoreIOV writes a new interval and its values
	StoreIOV(ctx context.Context, ref Ref, interval iov.Interval, payload Payload) error
	// Close releases backend connections
	Close() error
}

// pickLatest returns the candidate with the greatest begin not after ts that still contains ts
func pickLatest(candidates []iov.Interval, ts iov.Timestamp) (iov.Interval, bool) {
	var (
		best  iov.Interval
		found bool
	)

	for _, c := range candidates {
		if ts.Less(c.Begin) {
			continue
		}

		if !found || best.Begin.Less(c.Begin) {
			best = c
			found = true
		}
	}

	if !found || !best.Contains(ts) {
		return iov.Interval{}, false
	}

	return best, true
}
