package iov

import "fmt"

// Interval is a validity window [Begin, End).
//
// An interval whose End is the sentinel maximum also contains the sentinel
// itself, so "valid forever" windows answer for every timestamp from Begin on.
type Interval struct {
	Begin Timestamp
	End   Timestamp
}

// NewInterval creates an interval from its bounds
func NewInterval(begin, end Timestamp) Interval {
	return Interval{Begin: begin, End: end}
}

// Forever returns the open-ended interval used by snapshots that are not
// database backed: one stamp tick before the sentinel through the sentinel.
func Forever() Interval {
	maxTS := MaxTimestamp()

	return Interval{Begin: maxTS.Predecessor(), End: maxTS}
}

// Valid reports whether Begin is strictly before End
func (i Interval) Valid() bool {
	return i.Begin.Less(i.End)
}

// Contains reports whether ts falls inside the interval
func (i Interval) Contains(ts Timestamp) bool {
	if ts.Less(i.Begin) {
		return false
	}

	if ts.Less(i.End) {
		return true
	}

	return i.End.IsMax() && ts.IsMax()
}

// Equal reports whether both bounds match
func (i Interval) Equal(other Interval) bool {
	return i.Begin.Equal(other.Begin) && i.End.Equal(other.End)
}

// String renders the interval as "[begin, end)"
func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Begin, i.End)
}
