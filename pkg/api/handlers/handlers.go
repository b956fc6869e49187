// Package handlers implements the request handlers of the calibration API.
package handlers

import (
	"context"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

// CalibrationProvider is the calibration cache served by the API
type CalibrationProvider interface {
	Snapshot() *snapshot.Snapshot
	DataSource() datasource.Source
	Update(ctx context.Context, ts iov.Timestamp) (bool, error)
}

// Server holds the handler dependencies
type Server struct {
	provider CalibrationProvider
	openAPI  []byte
	log      logrus.FieldLogger
}

// NewServer creates a new API server instance
func NewServer(provider CalibrationProvider, openAPI []byte, log logrus.FieldLogger) *Server {
	return &Server{
		provider: provider,
		openAPI:  openAPI,
		log:      log.WithField("component", "api.handlers"),
	}
}

// Record is the JSON form of a calibration record
type Record struct {
	Channel        uint32            `json:"channel"`
	Gain           float32           `json:"gain"`
	GainErr        float32           `json:"gainErr"`
	ShapingTime    float32           `json:"shapingTime"`
	ShapingTimeErr float32           `json:"shapingTimeErr"`
	Category       string            `json:"category"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SnapshotSummary describes the published snapshot
type SnapshotSummary struct {
	Source     string `json:"source"`
	Generation string `json:"generation"`
	Begin      string `json:"begin"`
	End        string `json:"end"`
	Channels   int    `json:"channels"`
}

// ChannelsResponse lists every record of one snapshot
type ChannelsResponse struct {
	Snapshot SnapshotSummary `json:"snapshot"`
	Channels []Record        `json:"channels"`
	Total    int             `json:"total"`
}

// ChannelResponse holds one record and the snapshot it was read from
type ChannelResponse struct {
	Snapshot SnapshotSummary `json:"snapshot"`
	Record   Record          `json:"record"`
}

// RefreshResponse reports the outcome of a refresh
type RefreshResponse struct {
	Updated  bool            `json:"updated"`
	Snapshot SnapshotSummary `json:"snapshot"`
}

func toRecord(rec calib.Record) Record {
	out := Record{
		Channel:        uint32(rec.Channel),
		Gain:           rec.Gain,
		GainErr:        rec.GainErr,
		ShapingTime:    rec.ShapingTime,
		ShapingTimeErr: rec.ShapingTimeErr,
		Category:       rec.ExtraInfo.Category(),
	}

	if keys := rec.ExtraInfo.Keys(); len(keys) > 0 {
		out.Metadata = make(map[string]string, len(keys))
		for _, k := range keys {
			out.Metadata[k], _ = rec.ExtraInfo.Get(k)
		}
	}

	return out
}

func (s *Server) summarize(snap *snapshot.Snapshot) SnapshotSummary {
	return SnapshotSummary{
		Source:     s.provider.DataSource().String(),
		Generation: snap.Generation().String(),
		Begin:      snap.Begin().String(),
		End:        snap.End().String(),
		Channels:   snap.Len(),
	}
}
