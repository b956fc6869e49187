// Package datasource resolves configuration flags into a single acquisition mode
package datasource

// Source is the acquisition mode of a calibration cache.
// It is chosen once at construction and never changes.
type Source int

const (
	// Database reads calibrations from the conditions database folder
	Database Source = iota
	// File reads calibrations from a local CSV file
	File
	// Default fills every geometry channel with configured default values
	Default
)

// String returns the lowercase mode name
func (s Source) String() string {
	switch s {
	case Database:
		return "database"
	case File:
		return "file"
	case Default:
		return "default"
	default:
		return "unknown"
	}
}

// Select picks the acquisition mode. Priority is Database, then File, then Default;
// setting both flags resolves to Database without complaint.
func Select(useDB, useFile bool) Source {
	switch {
	case useDB:
		return Database
	case useFile:
		return File
	default:
		return Default
	}
}
