package folder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/redis"
	r "github.com/redis/go-redis/v9"
)

// ErrInvalidPayloadField is returned when a stored payload field cannot be decoded
var ErrInvalidPayloadField = errors.New("invalid payload field")

// redisCandidates bounds how many intervals are inspected per lookup.
// Scores are float64 so large stamps can collide; candidates are re-checked exactly.
const redisCandidates = 16

// redisBackend keeps intervals in a sorted set scored by begin stamp
// and each interval's payload in a hash keyed "<channel>:<name>".
type redisBackend struct {
	client *r.Client
	cfg    *redis.Config
}

func newRedisBackend(client *r.Client, cfg *redis.Config) *redisBackend {
	return &redisBackend{client: client, cfg: cfg}
}

func (b *redisBackend) iovsKey(ref Ref) string {
	return b.cfg.PrefixKey(fmt.Sprintf("%s:%s:iovs", ref.Folder, ref.Tag))
}

func (b *redisBackend) payloadKey(ref Ref, interval iov.Interval) string {
	return b.cfg.PrefixKey(fmt.Sprintf("%s:%s:iov:%s", ref.Folder, ref.Tag, encodeInterval(interval)))
}

func (b *redisBackend) FindIOV(ctx context.Context, ref Ref, ts iov.Timestamp) (iov.Interval, error) {
	members, err := b.client.ZRevRangeByScore(ctx, b.iovsKey(ref), &r.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatUint(ts.Stamp, 10),
		Count: redisCandidates,
	}).Result()
	if err != nil {
		return iov.Interval{}, err
	}

	candidates := make([]iov.Interval, 0, len(members))
	for _, m := range members {
		interval, err := decodeInterval(m)
		if err != nil {
			return iov.Interval{}, err
		}

		candidates = append(candidates, interval)
	}

	interval, ok := pickLatest(candidates, ts)
	if !ok {
		return iov.Interval{}, fmt.Errorf("%w: %s in %s/%s", ErrNoIOV, ts, ref.Folder, ref.Tag)
	}

	return interval, nil
}

func (b *redisBackend) FetchPayload(ctx context.Context, ref Ref, interval iov.Interval) (Payload, error) {
	fields, err := b.client.HGetAll(ctx, b.payloadKey(ref, interval)).Result()
	if err != nil {
		return nil, err
	}

	payload := make(Payload)

	for key, raw := range fields {
		chPart, name, ok := strings.Cut(key, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPayloadField, key)
		}

		ch, err := strconv.ParseUint(chPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPayloadField, key, err)
		}

		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPayloadField, key, err)
		}

		payload.Set(calib.ChannelID(ch), name, value)
	}

	return payload, nil
}

// StoreIOV replaces any interval starting at the same begin timestamp,
// together with its payload, so republishing never merges old channels.
func (b *redisBackend) StoreIOV(ctx context.Context, ref Ref, interval iov.Interval, payload Payload) error {
	values := make(map[string]interface{})
	for ch, fields := range payload {
		for name, value := range fields {
			values[fmt.Sprintf("%d:%s", ch, name)] = strconv.FormatFloat(value, 'g', -1, 64)
		}
	}

	iovsKey := b.iovsKey(ref)
	score := strconv.FormatUint(interval.Begin.Stamp, 10)

	return b.client.Watch(ctx, func(tx *r.Tx) error {
		members, err := tx.ZRangeByScore(ctx, iovsKey, &r.ZRangeBy{Min: score, Max: score}).Result()
		if err != nil {
			return err
		}

		var superseded []iov.Interval

		for _, m := range members {
			existing, err := decodeInterval(m)
			if err != nil {
				return err
			}

			if existing.Begin.Equal(interval.Begin) {
				superseded = append(superseded, existing)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe r.Pipeliner) error {
			for _, old := range superseded {
				pipe.ZRem(ctx, iovsKey, encodeInterval(old))
				pipe.Del(ctx, b.payloadKey(ref, old))
			}

			pipe.Del(ctx, b.payloadKey(ref, interval))

			if len(values) > 0 {
				pipe.HSet(ctx, b.payloadKey(ref, interval), values)
			}

			pipe.ZAdd(ctx, iovsKey, r.Z{
				Score:  float64(interval.Begin.Stamp),
				Member: encodeInterval(interval),
			})

			return nil
		})

		return err
	}, iovsKey)
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}

func encodeInterval(interval iov.Interval) string {
	return interval.Begin.String() + "-" + interval.End.String()
}

func decodeInterval(s string) (iov.Interval, error) {
	beginPart, endPart, ok := strings.Cut(s, "-")
	if !ok {
		return iov.Interval{}, fmt.Errorf("%w: %q", iov.ErrInvalidTimestamp, s)
	}

	begin, err := iov.ParseTimestamp(beginPart)
	if err != nil {
		return iov.Interval{}, err
	}

	end, err := iov.ParseTimestamp(endPart)
	if err != nil {
		return iov.Interval{}, err
	}

	return iov.NewInterval(begin, end), nil
}
