package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ethpandaops/iovcalib/pkg/folder"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/loader"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	publishFile  string
	publishBegin string
	publishEnd   string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload a calibration CSV as a new interval of validity",
	Long: `Reads a calibration CSV (channel,gain,gainError,shapingTime,shapingTimeError)
and stores it in the configured database folder under [begin, end).

Examples:
  # Valid from stamp 1704067200 onwards
  iovcalib publish --config config.yaml --file calib.csv --begin 1704067200

  # Bounded interval
  iovcalib publish --config config.yaml --file calib.csv --begin 100 --end 200.5`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishFile, "file", "", "Calibration CSV to upload")
	publishCmd.Flags().StringVar(&publishBegin, "begin", "", "Start of the interval of validity (inclusive)")
	publishCmd.Flags().StringVar(&publishEnd, "end", "", "End of the interval of validity (exclusive, default open-ended)")

	_ = publishCmd.MarkFlagRequired("file")
	_ = publishCmd.MarkFlagRequired("begin")
}

// parseInterval resolves the begin/end flags; an empty end means open-ended
func parseInterval(begin, end string) (iov.Interval, error) {
	b, err := iov.ParseTimestamp(begin)
	if err != nil {
		return iov.Interval{}, fmt.Errorf("invalid --begin: %w", err)
	}

	e := iov.MaxTimestamp()
	if end != "" {
		if e, err = iov.ParseTimestamp(end); err != nil {
			return iov.Interval{}, fmt.Errorf("invalid --end: %w", err)
		}
	}

	interval := iov.NewInterval(b, e)
	if !interval.Valid() {
		return iov.Interval{}, fmt.Errorf("%w: %s", folder.ErrInvalidIOV, interval)
	}

	return interval, nil
}

func runPublish(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	interval, err := parseInterval(publishBegin, publishEnd)
	if err != nil {
		return err
	}

	config, err := LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	f, err := os.Open(publishFile) //nolint:gosec // User-provided calibration file path
	if err != nil {
		return fmt.Errorf("%w: %q: %w", loader.ErrFileNotFound, publishFile, err)
	}
	defer f.Close()

	records, err := loader.ReadRecords(f)
	if err != nil {
		return fmt.Errorf("%s: %w", publishFile, err)
	}

	payload := folder.PayloadFromRecords(records)

	ctx := context.Background()

	calibFolder, err := folder.Open(ctx, logger, &config.ElectronicsCalib.DatabaseRetrievalAlg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := calibFolder.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close calibration folder")
		}
	}()

	if err := calibFolder.Store(ctx, interval, payload); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"interval": interval.String(),
		"channels": len(payload),
		"backend":  config.ElectronicsCalib.DatabaseRetrievalAlg.Backend,
	}).Info("Published calibrations")

	return nil
}
