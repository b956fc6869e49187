package loader

import "errors"

// Loader errors
var (
	// ErrConfiguration is returned when a required setting is missing at construction
	ErrConfiguration = errors.New("configuration error")
	// ErrFileNotFound is returned when the calibration file cannot be opened
	ErrFileNotFound = errors.New("calibration file not found")
	// ErrParse is returned when the calibration file has malformed content
	ErrParse = errors.New("failed to parse calibration file")
)
