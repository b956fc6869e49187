// Package calib defines per-channel electronics calibration records
package calib

import (
	"maps"
	"slices"
)

// CategoryElectronicsCalib is the provenance category of electronics calibration records
const CategoryElectronicsCalib = "ElectronicsCalib"

// Named fields of an electronics calibration row in the conditions database
const (
	FieldGain           = "gain"
	FieldGainErr        = "gain_err"
	FieldShapingTime    = "shaping_time"
	FieldShapingTimeErr = "shaping_time_err"
)

// FieldNames returns the database field names in record order
func FieldNames() []string {
	return []string{FieldGain, FieldGainErr, FieldShapingTime, FieldShapingTimeErr}
}

// ChannelID identifies one electronics readout channel
type ChannelID uint32

// ExtraInfo is the provenance tag attached to a record.
// It names the calibration category and can carry free-form string metadata.
type ExtraInfo struct {
	category string
	fields   map[string]string
}

// NewExtraInfo creates a provenance tag for the given category
func NewExtraInfo(category string) ExtraInfo {
	return ExtraInfo{category: category}
}

// Category returns the calibration category that produced the record
func (e ExtraInfo) Category() string {
	return e.category
}

// With returns a copy of the tag with key set to value
func (e ExtraInfo) With(key, value string) ExtraInfo {
	fields := make(map[string]string, len(e.fields)+1)
	maps.Copy(fields, e.fields)
	fields[key] = value

	return ExtraInfo{category: e.category, fields: fields}
}

// Get returns a metadata value and whether it was present
func (e ExtraInfo) Get(key string) (string, bool) {
	v, ok := e.fields[key]

	return v, ok
}

// Keys returns the metadata keys in sorted order
func (e ExtraInfo) Keys() []string {
	return slices.Sorted(maps.Keys(e.fields))
}

// Equal compares category and metadata
func (e ExtraInfo) Equal(other ExtraInfo) bool {
	return e.category == other.category && maps.Equal(e.fields, other.fields)
}

// Record holds the calibration parameters of one channel
type Record struct {
	Channel        ChannelID
	Gain           float32
	GainErr        float32
	ShapingTime    float32
	ShapingTimeErr float32
	ExtraInfo      ExtraInfo
}

// NewElectronicsCalib returns an empty record for ch tagged with the electronics category
func NewElectronicsCalib(ch ChannelID) Record {
	return Record{
		Channel:   ch,
		ExtraInfo: NewExtraInfo(CategoryElectronicsCalib),
	}
}

// Field returns the named parameter widened to float64
func (r Record) Field(name string) (float64, bool) {
	switch name {
	case FieldGain:
		return float64(r.Gain), true
	case FieldGainErr:
		return float64(r.GainErr), true
	case FieldShapingTime:
		return float64(r.ShapingTime), true
	case FieldShapingTimeErr:
		return float64(r.ShapingTimeErr), true
	default:
		return 0, false
	}
}

// Equal compares all parameters and the provenance tag
func (r Record) Equal(other Record) bool {
	return r.Channel == other.Channel &&
		r.Gain == other.Gain &&
		r.GainErr == other.GainErr &&
		r.ShapingTime == other.ShapingTime &&
		r.ShapingTimeErr == other.ShapingTimeErr &&
		r.ExtraInfo.Equal(other.ExtraInfo)
}
