package provider

import (
	"github.com/ethpandaops/iovcalib/pkg/datasource"
	"github.com/ethpandaops/iovcalib/pkg/folder"
	"github.com/ethpandaops/iovcalib/pkg/loader"
)

// Config selects the acquisition mode and carries its settings
type Config struct {
	// UseDB reads calibrations from the conditions database; wins over UseFile
	UseDB bool `yaml:"useDB"`
	// UseFile reads calibrations from FileName
	UseFile  bool   `yaml:"useFile"`
	FileName string `yaml:"fileName"`

	// Defaults are required only when neither flag is set
	DefaultGain           *float64 `yaml:"defaultGain"`
	DefaultGainErr        *float64 `yaml:"defaultGainErr"`
	DefaultShapingTime    *float64 `yaml:"defaultShapingTime"`
	DefaultShapingTimeErr *float64 `yaml:"defaultShapingTimeErr"`

	// DatabaseRetrievalAlg is handed to the folder collaborator as-is
	DatabaseRetrievalAlg folder.Config `yaml:"databaseRetrievalAlg"`
}

// Source returns the acquisition mode selected by the flags
func (c *Config) Source() datasource.Source {
	return datasource.Select(c.UseDB, c.UseFile)
}

// Defaults returns the configured default values
func (c *Config) Defaults() loader.Defaults {
	return loader.Defaults{
		Gain:           c.DefaultGain,
		GainErr:        c.DefaultGainErr,
		ShapingTime:    c.DefaultShapingTime,
		ShapingTimeErr: c.DefaultShapingTimeErr,
	}
}

// Validate checks the settings required by the selected mode
func (c *Config) Validate() error {
	if c.Source() == datasource.Default {
		return c.Defaults().Validate()
	}

	return nil
}
