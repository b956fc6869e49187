package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/ethpandaops/iovcalib/pkg/calib"
	"github.com/ethpandaops/iovcalib/pkg/iov"
	"github.com/ethpandaops/iovcalib/pkg/provider"
	"github.com/ethpandaops/iovcalib/pkg/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	lookupChannels []uint
	lookupTS       string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Print calibrations for channels at a timestamp",
	Long: `Builds the calibration cache from the configuration, optionally refreshes
it for a timestamp, and prints the requested channels.

Examples:
  # All channels of the configured defaults or file
  iovcalib lookup --config config.yaml

  # Two channels from the database folder valid at stamp 1704067200
  iovcalib lookup --config config.yaml --channel 12 --channel 13 --ts 1704067200`,
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().UintSliceVar(&lookupChannels, "channel", nil, "Channel to print (repeatable, default all)")
	lookupCmd.Flags().StringVar(&lookupTS, "ts", "", "Refresh for this timestamp first (<stamp> or <stamp>.<substamp>)")
}

func runLookup(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	// Keep provider logs out of the table unless asked for
	if !cmd.Flags().Changed("log-level") {
		logger.SetLevel(logrus.ErrorLevel)
	}

	config, err := LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()

	p, err := newLookupProvider(ctx, logger, config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close calibration folder")
		}
	}()

	if lookupTS != "" {
		ts, parseErr := iov.ParseTimestamp(lookupTS)
		if parseErr != nil {
			return parseErr
		}

		if _, updateErr := p.Update(ctx, ts); updateErr != nil {
			return updateErr
		}
	}

	channels := make([]calib.ChannelID, 0, len(lookupChannels))
	for _, ch := range lookupChannels {
		if ch > math.MaxUint32 {
			return fmt.Errorf("channel %d out of range", ch)
		}

		channels = append(channels, calib.ChannelID(ch))
	}

	return printLookup(cmd.OutOrStdout(), p, channels)
}

// newLookupProvider validates the configuration before building the provider
// so missing settings surface as configuration errors.
func newLookupProvider(ctx context.Context, log logrus.FieldLogger, config *server.Config) (*provider.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return server.NewProvider(ctx, log, config)
}

// printLookup writes the snapshot header and one row per channel.
// An empty channel list prints every channel in the snapshot.
func printLookup(out io.Writer, p *provider.Provider, channels []calib.ChannelID) error {
	// Hold one snapshot so the header and rows agree
	snap := p.Snapshot()

	if len(channels) == 0 {
		channels = snap.Channels()
	}

	fmt.Fprintf(out, "Source:     %s\n", p.DataSource())
	fmt.Fprintf(out, "Interval:   %s\n", snap.Interval())
	fmt.Fprintf(out, "Generation: %s\n\n", snap.Generation())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tGAIN\tGAIN_ERR\tSHAPING_TIME\tSHAPING_TIME_ERR\tCATEGORY")

	for _, ch := range channels {
		rec, err := snap.Row(ch)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%d\t%g\t%g\t%g\t%g\t%s\n",
			rec.Channel, rec.Gain, rec.GainErr, rec.ShapingTime, rec.ShapingTimeErr, rec.ExtraInfo.Category())
	}

	return w.Flush()
}
