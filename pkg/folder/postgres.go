package folder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrChannelOutOfRange is returned when a stored channel does not fit a channel id
var ErrChannelOutOfRange = errors.New("channel out of range")

// Stamps are numeric(20,0) columns so the full uint64 range, including the
// sentinel maximum, round-trips. They travel as text in both directions.
const postgresFindIOVQuery = `
SELECT begin_stamp::text, begin_substamp::text, end_stamp::text, end_substamp::text
FROM %s
WHERE tag = $1
  AND (begin_stamp, begin_substamp) <= ($2::text::numeric, $3::text::numeric)
ORDER BY begin_stamp DESC, begin_substamp DESC
LIMIT 1
`

const postgresFetchPayloadQuery = `
SELECT channel, name, value
FROM %s
WHERE tag = $1
  AND begin_stamp = $2::text::numeric
  AND begin_substamp = $3::text::numeric
ORDER BY channel, name
`

const postgresDeleteQuery = `
DELETE FROM %s
WHERE tag = $1
  AND begin_stamp = $2::text::numeric
  AND begin_substamp = $3::text::numeric
`

const postgresInsertIOVQuery = `
INSERT INTO %s (tag, begin_stamp, begin_substamp, end_stamp, end_substamp)
VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric, $5::text::numeric)
`

const postgresInsertDataQuery = `
INSERT INTO %s (tag, begin_stamp, begin_substamp, channel, name, value)
VALUES ($1, $2::text::numeric, $3::text::numeric, $4, $5, $6)
`

const postgresSchemaDDL = `CREATE SCHEMA IF NOT EXISTS %s`

const postgresIOVTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
    tag            text           NOT NULL,
    begin_stamp    numeric(20, 0) NOT NULL,
    begin_substamp numeric(20, 0) NOT NULL,
    end_stamp      numeric(20, 0) NOT NULL,
    end_substamp   numeric(20, 0) NOT NULL,
    PRIMARY KEY (tag, begin_stamp, begin_substamp)
)
`

const postgresDataTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
    tag            text             NOT NULL,
    begin_stamp    numeric(20, 0)   NOT NULL,
    begin_substamp numeric(20, 0)   NOT NULL,
    channel        bigint           NOT NULL,
    name           text             NOT NULL,
    value          double precision NOT NULL,
    PRIMARY KEY (tag, begin_stamp, begin_substamp, channel, name)
)
`

// postgresBackend stores folders in <schema>.<folder>_iovs and <schema>.<folder>_data
type postgresBackend struct {
	pool   *pgxpool.Pool
	schema string
}

func newPostgresBackend(ctx context.Context, cfg *PostgresConfig) (*postgresBackend, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	return &postgresBackend{pool: pool, schema: cfg.Schema}, nil
}

func (b *postgresBackend) FindIOV(ctx context.Context, ref Ref, ts iov.Timestamp) (iov.Interval, error) {
	query := fmt.Sprintf(postgresFindIOVQuery, postgresTable(b.schema, ref, "iovs"))

	var beginStamp, beginSub, endStamp, endSub string

	err := b.pool.QueryRow(ctx, query, ref.Tag, formatStamp(ts.Stamp), formatStamp(ts.SubStamp)).
		Scan(&beginStamp, &beginSub, &endStamp, &endSub)
	if errors.Is(err, pgx.ErrNoRows) {
		return iov.Interval{}, fmt.Errorf("%w: %s in %s/%s", ErrNoIOV, ts, ref.Folder, ref.Tag)
	}

	if err != nil {
		return iov.Interval{}, err
	}

	interval, err := parseStampColumns(beginStamp, beginSub, endStamp, endSub)
	if err != nil {
		return iov.Interval{}, err
	}

	picked, ok := pickLatest([]iov.Interval{interval}, ts)
	if !ok {
		return iov.Interval{}, fmt.Errorf("%w: %s in %s/%s", ErrNoIOV, ts, ref.Folder, ref.Tag)
	}

	return picked, nil
}

func (b *postgresBackend) FetchPayload(ctx context.Context, ref Ref, interval iov.Interval) (Payload, error) {
	query := fmt.Sprintf(postgresFetchPayloadQuery, postgresTable(b.schema, ref, "data"))

	rows, err := b.pool.Query(ctx, query, ref.Tag, formatStamp(interval.Begin.Stamp), formatStamp(interval.Begin.SubStamp))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payload := make(Payload)

	for rows.Next() {
		var (
			channel int64
			name    string
			value   float64
		)

		if err := rows.Scan(&channel, &name, &value); err != nil {
			return nil, err
		}

		if channel < 0 || channel > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %d", ErrChannelOutOfRange, channel)
		}

		payload.Set(calib.ChannelID(channel), name, value)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payload, nil
}

func (b *postgresBackend) StoreIOV(ctx context.Context, ref Ref, interval iov.Interval, payload Payload) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, ddl := range []string{
		fmt.Sprintf(postgresSchemaDDL, pgx.Identifier{b.schema}.Sanitize()),
		fmt.Sprintf(postgresIOVTableDDL, postgresTable(b.schema, ref, "iovs")),
		fmt.Sprintf(postgresDataTableDDL, postgresTable(b.schema, ref, "data")),
	} {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create folder schema: %w", err)
		}
	}

	begin, end := interval.Begin, interval.End

	// A store replaces whatever was published under the same begin timestamp.
	for _, suffix := range []string{"data", "iovs"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(postgresDeleteQuery, postgresTable(b.schema, ref, suffix)),
			ref.Tag, formatStamp(begin.Stamp), formatStamp(begin.SubStamp)); err != nil {
			return fmt.Errorf("failed to replace interval: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(postgresInsertIOVQuery, postgresTable(b.schema, ref, "iovs")),
		ref.Tag, formatStamp(begin.Stamp), formatStamp(begin.SubStamp), formatStamp(end.Stamp), formatStamp(end.SubStamp)); err != nil {
		return fmt.Errorf("failed to insert interval: %w", err)
	}

	insertData := fmt.Sprintf(postgresInsertDataQuery, postgresTable(b.schema, ref, "data"))
	batch := &pgx.Batch{}

	for _, ch := range payload.Channels() {
		for name, value := range payload[ch] {
			batch.Queue(insertData, ref.Tag, formatStamp(begin.Stamp), formatStamp(begin.SubStamp), int64(ch), name, value)
		}
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert payload: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (b *postgresBackend) Close() error {
	b.pool.Close()

	return nil
}

func postgresTable(schema string, ref Ref, suffix string) string {
	return pgx.Identifier{schema, strings.ToLower(ref.Folder) + "_" + suffix}.Sanitize()
}

func formatStamp(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseStampColumns(beginStamp, beginSub, endStamp, endSub string) (iov.Interval, error) {
	values := make([]uint64, 0, 4)

	for _, s := range []string{beginStamp, beginSub, endStamp, endSub} {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return iov.Interval{}, fmt.Errorf("%w: %q: %w", ErrInvalidUint64, s, err)
		}

		values = append(values, v)
	}

	return iov.NewInterval(
		iov.NewTimestamp(values[0], values[1]),
		iov.NewTimestamp(values[2], values[3]),
	), nil
}
