package folder

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/observability"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
)

// CachedFolder implements Folder on top of a Backend.
// Payloads of recently used intervals are kept in a TTL cache so flipping
// between neighbouring intervals does not refetch them.
type CachedFolder struct {
	log         logrus.FieldLogger
	backend     Backend
	backendName string
	ref         Ref
	payloads    *ttlcache.Cache[iov.Interval, Payload]

	mu       sync.RWMutex
	loaded   bool
	stale    bool
	interval iov.Interval
	payload  Payload
	channels []calib.ChannelID
}

// NewCachedFolder wraps backend for the folder ref
func NewCachedFolder(log logrus.FieldLogger, backendName string, backend Backend, ref Ref, ttl time.Duration, capacity uint64) *CachedFolder {
	opts := []ttlcache.Option[iov.Interval, Payload]{
		ttlcache.WithTTL[iov.Interval, Payload](ttl),
		ttlcache.WithDisableTouchOnHit[iov.Interval, Payload](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[iov.Interval, Payload](capacity))
	}

	return &CachedFolder{
		log: log.WithFields(logrus.Fields{
			"component": "folder",
			"backend":   backendName,
			"folder":    ref.Folder,
			"tag":       ref.Tag,
		}),
		backend:     backend,
		backendName: backendName,
		ref:         ref,
		payloads:    ttlcache.New(opts...),
	}
}

// UpdateFolder loads the interval covering ts.
// It returns false without touching the backend when the loaded interval already
// covers ts, and false when the backend resolves ts to the already loaded interval.
// On error the previously loaded data stays in place.
func (f *CachedFolder) UpdateFolder(ctx context.Context, ts iov.Timestamp) (bool, error) {
	f.mu.RLock()
	loaded, current := f.loaded && !f.stale, f.interval
	f.mu.RUnlock()

	if loaded && current.Contains(ts) {
		return false, nil
	}

	interval, err := f.findIOV(ctx, ts)
	if err != nil {
		return false, err
	}

	if loaded && interval.Equal(current) {
		return false, nil
	}

	payload, err := f.fetchPayload(ctx, interval)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	f.loaded = true
	f.stale = false
	f.interval = interval
	f.payload = payload
	f.channels = payload.Channels()
	f.mu.Unlock()

	f.log.WithFields(logrus.Fields{
		"timestamp": ts.String(),
		"interval":  interval.String(),
		"channels":  len(payload),
	}).Debug("Folder updated")

	return true, nil
}

// CurrentInterval returns the loaded interval, or the zero interval before the first update
func (f *CachedFolder) CurrentInterval() iov.Interval {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.interval
}

// ChannelList returns the loaded channels in ascending order
func (f *CachedFolder) ChannelList() []calib.ChannelID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return slices.Clone(f.channels)
}

// GetNamedChannelData returns a named value from the loaded payload
func (f *CachedFolder) GetNamedChannelData(ch calib.ChannelID, name string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.loaded {
		return 0, ErrNotLoaded
	}

	v, ok := f.payload[ch][name]
	if !ok {
		return 0, fmt.Errorf("%w: channel %d field %q in %s/%s", ErrMissingField, ch, name, f.ref.Folder, f.ref.Tag)
	}

	return v, nil
}

// Store writes a new interval to the backend, replacing any interval with the same begin.
// When that replaces the loaded interval, the next UpdateFolder reloads it.
func (f *CachedFolder) Store(ctx context.Context, interval iov.Interval, payload Payload) error {
	if !interval.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidIOV, interval)
	}

	start := time.Now()
	err := f.backend.StoreIOV(ctx, f.ref, interval, payload)
	f.record("store_iov", err, start)

	if err != nil {
		return fmt.Errorf("failed to store interval %s: %w", interval, err)
	}

	f.payloads.Delete(interval)

	f.mu.Lock()
	if f.loaded && f.interval.Begin.Equal(interval.Begin) {
		f.payloads.Delete(f.interval)
		f.stale = true
	}
	f.mu.Unlock()

	return nil
}

// Close releases the backend and stops the payload cache
func (f *CachedFolder) Close() error {
	f.payloads.DeleteAll()

	return f.backend.Close()
}

func (f *CachedFolder) findIOV(ctx context.Context, ts iov.Timestamp) (iov.Interval, error) {
	start := time.Now()
	interval, err := f.backend.FindIOV(ctx, f.ref, ts)
	f.record("find_iov", err, start)

	if err != nil {
		return iov.Interval{}, fmt.Errorf("failed to find interval for %s: %w", ts, err)
	}

	if !interval.Valid() {
		return iov.Interval{}, fmt.Errorf("%w: %s", ErrInvalidIOV, interval)
	}

	return interval, nil
}

func (f *CachedFolder) fetchPayload(ctx context.Context, interval iov.Interval) (Payload, error) {
	if item := f.payloads.Get(interval); item != nil {
		observability.RecordPayloadCache(true)

		return item.Value(), nil
	}

	observability.RecordPayloadCache(false)

	start := time.Now()
	payload, err := f.backend.FetchPayload(ctx, f.ref, interval)
	f.record("fetch_payload", err, start)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch payload for %s: %w", interval, err)
	}

	f.payloads.Set(interval, payload, ttlcache.DefaultTTL)

	return payload, nil
}

func (f *CachedFolder) record(operation string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
		observability.RecordError("folder", operation)
	}

	observability.RecordFolderQuery(f.backendName, operation, status, time.Since(start).Seconds())
}
