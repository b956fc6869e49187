// Package server provides server configuration and management
package server

import (
	"fmt"
	"time"

	"github.com/ethpandaops/iovcalib/pkg/api"
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/geometry"
	"github.com/ethpandaops/iovcalib/pkg/provider"
	"github.com/hashicorp/go-multierror"
)

// Config holds server configuration
type Config struct {
	// MetricsAddr is the address to listen on for metrics.
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`
	// HealthCheckAddr is the address to listen on for healthcheck.
	HealthCheckAddr *string `yaml:"healthCheckAddr"`
	// PProfAddr is the address to listen on for pprof.
	PProfAddr *string `yaml:"pprofAddr"`
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// ShutdownTimeout is the timeout for shutting down the server.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`

	// API is the REST API configuration.
	API api.Config `yaml:"api"`
	// ElectronicsCalib configures the calibration cache.
	ElectronicsCalib provider.Config `yaml:"electronicsCalib"`
	// Geometry lists the wire planes; required in default mode.
	Geometry geometry.Config `yaml:"geometry"`
}

// Validate checks if the configuration is valid.
// Every problem found is reported.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := c.API.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid api configuration: %w", err))
	}

	if err := c.ElectronicsCalib.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid electronicsCalib configuration: %w", err))
	}

	if c.ElectronicsCalib.Source() == datasource.Default {
		if err := c.Geometry.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid geometry configuration: %w", err))
		}
	}

	return result.ErrorOrNil()
}
