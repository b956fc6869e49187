package cmd

import (
	"context"

	"github.com/ethpandaops/iovcalib/pkg/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the calibration API server",
	Long: `Loads the calibration cache from the configured source and serves it over
the REST API, together with metrics and optional health and pprof endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	// The config file level applies unless --log-level was given
	if !cmd.Flags().Changed("log-level") {
		level, parseErr := logrus.ParseLevel(config.LoggingLevel)
		if parseErr != nil {
			return parseErr
		}

		logger.SetLevel(level)
	}

	logger.WithField("config", cfgFile).Info("Configuration loaded")

	ctx := context.Background()

	srv, err := server.NewServer(ctx, logger, config)
	if err != nil {
		return err
	}

	return srv.Start(ctx)
}
