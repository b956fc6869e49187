package iov

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Timestamp
		expected int
	}{
		{name: "equal", a: NewTimestamp(5, 1), b: NewTimestamp(5, 1), expected: 0},
		{name: "stamp less", a: NewTimestamp(4, 9), b: NewTimestamp(5, 0), expected: -1},
		{name: "stamp greater", a: NewTimestamp(6, 0), b: NewTimestamp(5, 9), expected: 1},
		{name: "substamp breaks tie less", a: NewTimestamp(5, 1), b: NewTimestamp(5, 2), expected: -1},
		{name: "substamp breaks tie greater", a: NewTimestamp(5, 3), b: NewTimestamp(5, 2), expected: 1},
		{name: "max is greatest", a: MaxTimestamp(), b: NewTimestamp(math.MaxUint64, 0), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.expected, Compare(tt.b, tt.a))
		})
	}
}

func TestPredecessor(t *testing.T) {
	maxTS := MaxTimestamp()
	pred := maxTS.Predecessor()

	assert.Equal(t, uint64(math.MaxUint64-1), pred.Stamp)
	assert.Equal(t, maxTS.SubStamp, pred.SubStamp)
	assert.True(t, pred.Less(maxTS))

	assert.Equal(t, NewTimestamp(0, 7), NewTimestamp(0, 7).Predecessor())
	assert.Equal(t, NewTimestamp(9, 3), NewTimestamp(10, 3).Predecessor())
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Timestamp
		wantErr  bool
	}{
		{name: "stamp only", input: "1500", expected: NewTimestamp(1500, 0)},
		{name: "stamp and substamp", input: "1500.25", expected: NewTimestamp(1500, 25)},
		{name: "surrounding whitespace", input: " 42.1 ", expected: NewTimestamp(42, 1)},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "bad substamp", input: "1.x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTimestamp)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, ts)
		})
	}
}

func TestTimestamp_StringRoundTrip(t *testing.T) {
	ts := NewTimestamp(123, 456)

	parsed, err := ParseTimestamp(ts.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}
