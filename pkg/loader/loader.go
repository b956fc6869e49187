// Package loader produces calibration snapshots from one of the three acquisition modes.
//
// The default and file loaders populate a snapshot once and never change it. The
// database loader rebuilds the snapshot whenever the conditions folder moves to a
// different interval of validity.
package loader

import (
	"context"

	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
)

// Loader builds snapshots for a single acquisition mode
type Loader interface {
	// Source returns the acquisition mode served by the loader
	Source() datasource.Source
	// Initial builds the snapshot published at construction
	Initial(ctx context.Context) (*snapshot.Snapshot, error)
	// Refresh returns the snapshot valid for ts and whether it differs from current.
	// When nothing changed, current is returned as-is.
	Refresh(ctx context.Context, ts iov.Timestamp, current *snapshot.Snapshot) (*snapshot.Snapshot, bool, error)
}
