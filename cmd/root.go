// Package cmd contains the CLI commands for iovcalib
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	// configEnv overrides the default config path when --config is not given
	configEnv         = "IOVCALIB_CONFIG"
	defaultConfigPath = "./config.yaml"

	logFormatText = "text"
	logFormatJSON = "json"
)

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile   string
	logLevel  string
	logFormat string
	logger    *logrus.Logger
)

//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "iovcalib",
	Short: "Interval-of-validity cache of electronics calibrations",
	Long: `iovcalib keeps per-channel electronics calibrations (gain, shaping time and
their uncertainties) for the current interval of validity. Calibrations come
from a conditions database folder, a CSV file, or configured defaults.

The config file holds an electronicsCalib block selecting the source
(useDB, useFile/fileName or the default* values) and, for database mode,
a databaseRetrievalAlg block naming the backend (clickhouse, postgres or
redis), folder and tag. Default mode also needs a geometry block.

Commands:
  serve    refresh the cache and expose it over the REST API
  lookup   print the calibrations valid at a timestamp
  publish  write a CSV snapshot to the database folder as a new interval`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return configureLogger(logger, logLevel, logFormat)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"calibration config file (default $"+configEnv+" or "+defaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error); serve falls back to the config's logging value when unset")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logFormatText,
		"log output format (text, json)")

	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func initConfig() {
	cfgFile = resolveConfigPath(cfgFile, os.Getenv(configEnv))
}

// resolveConfigPath prefers the flag, then the environment, then ./config.yaml
func resolveConfigPath(flag, env string) string {
	switch {
	case flag != "":
		return flag
	case env != "":
		return env
	default:
		return defaultConfigPath
	}
}

// configureLogger applies the level and output format flags
func configureLogger(log *logrus.Logger, level, format string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}

	log.SetLevel(parsed)

	switch format {
	case logFormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case logFormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid --log-format %q: want %s or %s", format, logFormatText, logFormatJSON)
	}

	return nil
}
