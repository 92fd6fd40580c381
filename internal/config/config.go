// Package config aggregates the engine's logging and crawler configuration
// sections into one top-level Config, loaded from a YAML file plus
// environment variables plus CLI flag overrides via viper, following the
// teacher's section-struct-plus-Interface pattern.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/andrewkchan/podcrawl/internal/config/crawler"
	"github.com/andrewkchan/podcrawl/internal/config/logging"
)

// Default values shared across sections.
const (
	DefaultMaxLogSize    = 100
	DefaultMaxLogBackups = 3
	DefaultMaxLogAge     = 30
)

// Config is the top-level aggregate configuration for one engine invocation.
type Config struct {
	Environment string
	Logger      *logging.Config
	Crawler     *crawler.Config
}

// Interface exposes read-only access to the aggregate configuration's
// sections, matching the style of the teacher's config.Interface.
type Interface interface {
	GetLoggerConfig() *logging.Config
	GetCrawlerConfig() *crawler.Config
	Validate() error
}

var _ Interface = (*Config)(nil)

// GetLoggerConfig returns the logging section.
func (c *Config) GetLoggerConfig() *logging.Config { return c.Logger }

// GetCrawlerConfig returns the crawler section.
func (c *Config) GetCrawlerConfig() *crawler.Config { return c.Crawler }

// Validate validates every section, stopping at the first failure.
func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("config: logger section is required")
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Crawler == nil {
		return errors.New("config: crawler section is required")
	}
	if err := c.Crawler.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

// LoadConfig builds a Config by reading the process-global viper instance
// populated by InitializeViper, each section loaded by its own
// LoadFromViper following the teacher's per-section convention.
func LoadConfig() (*Config, error) {
	v := viper.GetViper()

	cfg := &Config{
		Environment: v.GetString("app.environment"),
		Logger:      logging.LoadFromViper(v),
		Crawler:     crawler.LoadFromViper(v),
	}

	return cfg, nil
}
