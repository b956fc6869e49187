package folder

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/clickhouse"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/sirupsen/logrus"
)

// ErrInvalidUint64 is returned when a value cannot be unmarshaled as uint64
var ErrInvalidUint64 = errors.New("failed to unmarshal value as uint64")

// flexUint64 unmarshals from both string and number JSON values.
// ClickHouse quotes 64-bit integers in JSON output by default.
type flexUint64 uint64

// UnmarshalJSON implements json.Unmarshaler for flexUint64
func (f *flexUint64) UnmarshalJSON(data []byte) error {
	s := string(data)

	if s == "null" {
		return fmt.Errorf("%w: received null value", ErrInvalidUint64)
	}

	s = strings.Trim(s, `"`)

	parsed, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: failed to parse %q as uint64: %w", ErrInvalidUint64, s, err)
	}

	*f = flexUint64(parsed)

	return nil
}

type clickhouseIOVRow struct {
	Tag           string     `json:"tag,omitempty"`
	BeginStamp    flexUint64 `json:"begin_stamp"`
	BeginSubStamp flexUint64 `json:"begin_substamp"`
	EndStamp      flexUint64 `json:"end_stamp"`
	EndSubStamp   flexUint64 `json:"end_substamp"`
	Version       flexUint64 `json:"version,omitempty"`
}

func (r clickhouseIOVRow) interval() iov.Interval {
	return iov.NewInterval(
		iov.NewTimestamp(uint64(r.BeginStamp), uint64(r.BeginSubStamp)),
		iov.NewTimestamp(uint64(r.EndStamp), uint64(r.EndSubStamp)),
	)
}

type clickhouseDataRow struct {
	Tag           string     `json:"tag,omitempty"`
	BeginStamp    flexUint64 `json:"begin_stamp"`
	BeginSubStamp flexUint64 `json:"begin_substamp"`
	Channel       uint32     `json:"channel"`
	Name          string     `json:"name"`
	Value         float64    `json:"value"`
	Version       flexUint64 `json:"version,omitempty"`
}

// clickhouseBackend stores folders in two tables per folder:
// <folder>_iovs (tag, begin/end stamps) and <folder>_data (tag, begin stamp, channel, name, value).
// Every store writes both under a new version; readers take the highest version
// for a begin stamp, so a republished interval replaces the old one wholesale.
type clickhouseBackend struct {
	client            clickhouse.ClientInterface
	log               logrus.FieldLogger
	database          string
	queries           *QueryEngine
	findIOVQuery      string
	fetchPayloadQuery string

	schemaMu    sync.Mutex
	schemaReady map[string]bool

	// version returns the version stamped on a store; it must grow between stores
	version func() uint64
}

const clickhouseIOVTableDDL = `CREATE TABLE IF NOT EXISTS %s (
    tag String,
    begin_stamp UInt64,
    begin_substamp UInt64,
    end_stamp UInt64,
    end_substamp UInt64,
    version UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY (tag, begin_stamp, begin_substamp)`

const clickhouseDataTableDDL = `CREATE TABLE IF NOT EXISTS %s (
    tag String,
    begin_stamp UInt64,
    begin_substamp UInt64,
    channel UInt32,
    name LowCardinality(String),
    value Float64,
    version UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY (tag, begin_stamp, begin_substamp, channel, name)`

func newClickHouseBackend(log logrus.FieldLogger, client clickhouse.ClientInterface, cfg *ClickHouseConfig) *clickhouseBackend {
	b := &clickhouseBackend{
		client:            client,
		log:               log.WithField("backend", BackendClickHouse),
		schemaReady:       make(map[string]bool),
		version:           func() uint64 { return uint64(time.Now().UnixNano()) },
		database:          cfg.Database,
		queries:           NewQueryEngine(),
		findIOVQuery:      defaultFindIOVQuery,
		fetchPayloadQuery: defaultFetchPayloadQuery,
	}

	if cfg.FindIOVQuery != "" {
		b.findIOVQuery = cfg.FindIOVQuery
	}

	if cfg.FetchPayloadQuery != "" {
		b.fetchPayloadQuery = cfg.FetchPayloadQuery
	}

	return b
}

func (b *clickhouseBackend) FindIOV(ctx context.Context, ref Ref, ts iov.Timestamp) (iov.Interval, error) {
	vars := BuildVariables(b.database, ref)
	vars["ts"] = timestampVariables(ts)

	query, err := b.queries.Render("find_iov", b.findIOVQuery, vars)
	if err != nil {
		return iov.Interval{}, err
	}

	var rows []clickhouseIOVRow
	if err := b.client.QueryMany(ctx, query, &rows); err != nil {
		return iov.Interval{}, err
	}

	candidates := make([]iov.Interval, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, row.interval())
	}

	interval, ok := pickLatest(candidates, ts)
	if !ok {
		return iov.Interval{}, fmt.Errorf("%w: %s in %s/%s", ErrNoIOV, ts, ref.Folder, ref.Tag)
	}

	return interval, nil
}

func (b *clickhouseBackend) FetchPayload(ctx context.Context, ref Ref, interval iov.Interval) (Payload, error) {
	vars := BuildVariables(b.database, ref)
	vars["iov"] = intervalVariables(interval)

	query, err := b.queries.Render("fetch_payload", b.fetchPayloadQuery, vars)
	if err != nil {
		return nil, err
	}

	var rows []clickhouseDataRow
	if err := b.client.QueryMany(ctx, query, &rows); err != nil {
		return nil, err
	}

	payload := make(Payload)
	for _, row := range rows {
		payload.Set(calib.ChannelID(row.Channel), row.Name, row.Value)
	}

	return payload, nil
}

func (b *clickhouseBackend) StoreIOV(ctx context.Context, ref Ref, interval iov.Interval, payload Payload) error {
	if err := b.ensureSchema(ctx, ref); err != nil {
		return err
	}

	begin := interval.Begin
	version := flexUint64(b.version())

	data := make([]clickhouseDataRow, 0, len(payload)*len(calib.FieldNames()))
	for _, ch := range payload.Channels() {
		fields := payload[ch]
		for _, name := range slices.Sorted(maps.Keys(fields)) {
			data = append(data, clickhouseDataRow{
				Tag:           ref.Tag,
				BeginStamp:    flexUint64(begin.Stamp),
				BeginSubStamp: flexUint64(begin.SubStamp),
				Channel:       uint32(ch),
				Name:          name,
				Value:         fields[name],
				Version:       version,
			})
		}
	}

	// Data first so a reader never finds an interval without its payload.
	if err := b.client.BulkInsert(ctx, b.table(ref, "data"), data); err != nil {
		return err
	}

	row := clickhouseIOVRow{
		Tag:           ref.Tag,
		BeginStamp:    flexUint64(begin.Stamp),
		BeginSubStamp: flexUint64(begin.SubStamp),
		EndStamp:      flexUint64(interval.End.Stamp),
		EndSubStamp:   flexUint64(interval.End.SubStamp),
		Version:       version,
	}

	return b.client.BulkInsert(ctx, b.table(ref, "iovs"), []clickhouseIOVRow{row})
}

func (b *clickhouseBackend) Close() error {
	return b.client.Stop()
}

func (b *clickhouseBackend) table(ref Ref, suffix string) string {
	return fmt.Sprintf("%s.%s", b.database, b.tableName(ref, suffix))
}

func (b *clickhouseBackend) tableName(ref Ref, suffix string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(ref.Folder), suffix)
}

// ensureSchema creates the folder's tables on first write
func (b *clickhouseBackend) ensureSchema(ctx context.Context, ref Ref) error {
	b.schemaMu.Lock()
	defer b.schemaMu.Unlock()

	if b.schemaReady[ref.Folder] {
		return nil
	}

	tables := []struct {
		suffix string
		ddl    string
	}{
		{suffix: "iovs", ddl: clickhouseIOVTableDDL},
		{suffix: "data", ddl: clickhouseDataTableDDL},
	}

	for _, tbl := range tables {
		created, err := clickhouse.EnsureTable(ctx, b.client, b.database,
			b.tableName(ref, tbl.suffix), fmt.Sprintf(tbl.ddl, b.table(ref, tbl.suffix)))
		if err != nil {
			return err
		}

		if created {
			b.log.WithField("table", b.table(ref, tbl.suffix)).Info("Created folder table")
		}
	}

	b.schemaReady[ref.Folder] = true

	return nil
}
