// Package redis provides Redis client configuration
package redis

import (
	"errors"
	"fmt"
	"strings"

	r "github.com/redis/go-redis/v9"
)

// Define static errors
var (
	ErrAddressRequired = errors.New("redis address is required")
)

// Config holds Redis client configuration
type Config struct {
	Address string `yaml:"address"`
	Prefix  string `yaml:"prefix"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Address == "" {
		return ErrAddressRequired
	}

	if c.Prefix == "" {
		c.Prefix = "iovcalib"
	}

	return nil
}

// PrefixKey adds the configured prefix to a Redis key
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}

// Options converts the address into client options.
// Both redis:// URLs and bare host:port addresses are accepted.
func (c *Config) Options() (*r.Options, error) {
	if strings.Contains(c.Address, "://") {
		opts, err := r.ParseURL(c.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}

		return opts, nil
	}

	return &r.Options{Addr: c.Address}, nil
}

// New validates the configuration and creates a client
func New(c *Config) (*r.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opts, err := c.Options()
	if err != nil {
		return nil, err
	}

	return r.NewClient(opts), nil
}
