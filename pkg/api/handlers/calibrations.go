package handlers

import (
	"errors"
	"strconv"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
	"github.com/gofiber/fiber/v3"
)

// GetSnapshot handles GET /api/v1/snapshot
func (s *Server) GetSnapshot(c fiber.Ctx) error {
	return c.JSON(s.summarize(s.provider.Snapshot()))
}

// ListChannels handles GET /api/v1/channels
func (s *Server) ListChannels(c fiber.Ctx) error {
	snap := s.provider.Snapshot()

	records := make([]Record, 0, snap.Len())
	for _, ch := range snap.Channels() {
		rec, err := snap.Row(ch)
		if err != nil {
			return err
		}

		records = append(records, toRecord(rec))
	}

	return c.JSON(ChannelsResponse{
		Snapshot: s.summarize(snap),
		Channels: records,
		Total:    len(records),
	})
}

// GetChannel handles GET /api/v1/channels/:channel.
// With a ts query parameter the cache is refreshed for ts before the lookup.
func (s *Server) GetChannel(c fiber.Ctx) error {
	ch, err := strconv.ParseUint(c.Params("channel"), 10, 32)
	if err != nil {
		return ErrInvalidChannel
	}

	if raw := c.Query("ts"); raw != "" {
		if _, err := s.refresh(c, raw); err != nil {
			return err
		}
	}

	// Read the row and the summary from one snapshot.
	snap := s.provider.Snapshot()

	rec, err := snap.Row(calib.ChannelID(ch))
	if errors.Is(err, snapshot.ErrUnknownChannel) {
		return ErrUnknownChannel
	}

	if err != nil {
		return err
	}

	return c.JSON(ChannelResponse{
		Snapshot: s.summarize(snap),
		Record:   toRecord(rec),
	})
}

// Refresh handles POST /api/v1/refresh?ts=
func (s *Server) Refresh(c fiber.Ctx) error {
	raw := c.Query("ts")
	if raw == "" {
		return ErrTimestampRequired
	}

	updated, err := s.refresh(c, raw)
	if err != nil {
		return err
	}

	return c.JSON(RefreshResponse{
		Updated:  updated,
		Snapshot: s.summarize(s.provider.Snapshot()),
	})
}

// GetOpenAPI handles GET /api/v1/openapi.json
func (s *Server) GetOpenAPI(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(s.openAPI)
}

func (s *Server) refresh(c fiber.Ctx, raw string) (bool, error) {
	ts, err := iov.ParseTimestamp(raw)
	if err != nil {
		return false, ErrInvalidTimestamp
	}

	updated, err := s.provider.Update(c.Context(), ts)
	if err != nil {
		s.log.WithError(err).WithField("timestamp", ts.String()).Warn("Refresh failed")

		return false, ErrRefreshFailed
	}

	return updated, nil
}
