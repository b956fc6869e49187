package loader

import (
	"context"
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/snapshot"
	"github.com/sirupsen/logrus"
)

// recordFields is the number of leading fields consulted per line
const recordFields = 5

// maxLineBytes bounds a single calibration line
const maxLineBytes = 1024 * 1024

// FileLoader reads calibrations from a CSV file of
// channel,gain,gainError,shapingTime,shapingTimeError lines
type FileLoader struct {
	log  logrus.FieldLogger
	path string
}

// NewFileLoader creates a loader for path. The file is opened by Initial.
func NewFileLoader(log logrus.FieldLogger, path string) *FileLoader {
	return &FileLoader{
		log:  log.WithFields(logrus.Fields{"loader": datasource.File.String(), "path": path}),
		path: path,
	}
}

// Source implements Loader
func (l *FileLoader) Source() datasource.Source {
	return datasource.File
}

// Initial reads the whole file into a new snapshot valid forever.
// Any malformed line fails the load and nothing from the file is kept.
func (l *FileLoader) Initial(_ context.Context) (*snapshot.Snapshot, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrFileNotFound, l.path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}

	b := snapshot.NewBuilder()
	for _, rec := range records {
		b.AddOrReplaceRow(rec)
	}

	l.log.WithFields(logrus.Fields{
		"lines":    len(records),
		"channels": b.Len(),
	}).Info("Loaded calibrations from file")

	return b.Build(), nil
}

// Refresh is a no-op; the file is read once
func (l *FileLoader) Refresh(_ context.Context, _ iov.Timestamp, current *snapshot.Snapshot) (*snapshot.Snapshot, bool, error) {
	return current, false, nil
}

// ReadRecords parses calibration lines in file order.
// Fields are split on plain commas; quoting is not part of the format.
// Duplicate channels are returned as they appear; callers decide which wins.
func ReadRecords(r io.Reader) ([]calib.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		records []calib.Record
		line    int
	)

	for scanner.Scan() {
		line++

		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := parseRecord(strings.Split(text, ","))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrParse, line, err)
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %w", ErrParse, line+1, err)
	}

	return records, nil
}

func parseRecord(fields []string) (calib.Record, error) {
	if len(fields) < recordFields {
		return calib.Record{}, fmt.Errorf("expected %d fields, got %d", recordFields, len(fields))
	}

	ch, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
	if err != nil {
		return calib.Record{}, fmt.Errorf("channel: %w", err)
	}

	var values [recordFields - 1]float32

	for i, name := range calib.FieldNames() {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 32)
		if err != nil {
			return calib.Record{}, fmt.Errorf("%s: %w", name, err)
		}

		values[i] = float32(v)
	}

	rec := calib.NewElectronicsCalib(calib.ChannelID(ch))
	rec.Gain, rec.GainErr, rec.ShapingTime, rec.ShapingTimeErr = values[0], values[1], values[2], values[3]

	return rec, nil
}
