// Package iov provides interval-of-validity timestamps and intervals
package iov

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTimestamp is returned when a timestamp string cannot be parsed
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Timestamp is a totally ordered point in time made of a coarse stamp and a sub-stamp.
// The stamp is compared first; the sub-stamp breaks ties.
type Timestamp struct {
	Stamp    uint64
	SubStamp uint64
}

// NewTimestamp creates a timestamp from its two components
func NewTimestamp(stamp, subStamp uint64) Timestamp {
	return Timestamp{Stamp: stamp, SubStamp: subStamp}
}

// MaxTimestamp returns the sentinel "forever" timestamp
func MaxTimestamp() Timestamp {
	return Timestamp{Stamp: math.MaxUint64, SubStamp: math.MaxUint64}
}

// Compare returns -1 if a < b, 0 if a == b and +1 if a > b
func Compare(a, b Timestamp) int {
	switch {
	case a.Stamp < b.Stamp:
		return -1
	case a.Stamp > b.Stamp:
		return 1
	case a.SubStamp < b.SubStamp:
		return -1
	case a.SubStamp > b.SubStamp:
		return 1
	default:
		return 0
	}
}

// Less reports whether t is strictly before other
func (t Timestamp) Less(other Timestamp) bool {
	return Compare(t, other) < 0
}

// Equal reports whether t and other denote the same point in time
func (t Timestamp) Equal(other Timestamp) bool {
	return Compare(t, other) == 0
}

// IsMax reports whether t is the sentinel maximum
func (t Timestamp) IsMax() bool {
	return t.Equal(MaxTimestamp())
}

// Predecessor returns the timestamp one stamp tick before t, keeping the sub-stamp.
// The zero stamp has no predecessor and is returned unchanged.
func (t Timestamp) Predecessor() Timestamp {
	if t.Stamp == 0 {
		return t
	}

	return Timestamp{Stamp: t.Stamp - 1, SubStamp: t.SubStamp}
}

// String renders the timestamp as "<stamp>.<substamp>"
func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%d", t.Stamp, t.SubStamp)
}

// ParseTimestamp parses "<stamp>" or "<stamp>.<substamp>"
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, fmt.Errorf("%w: empty string", ErrInvalidTimestamp)
	}

	stampPart, subPart, hasSub := strings.Cut(s, ".")

	stamp, err := strconv.ParseUint(stampPart, 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q: %w", ErrInvalidTimestamp, s, err)
	}

	if !hasSub {
		return Timestamp{Stamp: stamp}, nil
	}

	sub, err := strconv.ParseUint(subPart, 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q: %w", ErrInvalidTimestamp, s, err)
	}

	return Timestamp{Stamp: stamp, SubStamp: sub}, nil
}
