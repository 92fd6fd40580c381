// Package logging provides logging-specific configuration types and
// functional-option construction, shared by every pod process (orchestrator,
// fetcher, parser) so a deployment's log level/format/rotation policy is set
// once and handed down uniformly.
package logging

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default configuration values, applied by New when no matching Option is
// supplied.
const (
	DefaultLevel     = "info"
	DefaultEncoding  = "json"
	DefaultOutput    = "stdout"
	DefaultDebug     = false
	DefaultCaller    = false
	DefaultStacktrace = false
	DefaultMaxSize    = 100
	DefaultMaxBackups = 3
	DefaultMaxAge     = 30
	DefaultCompress   = true
)

// Config holds logging-specific configuration settings.
type Config struct {
	// Level is the logging level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Encoding is the log encoding format (json, console)
	Encoding string `yaml:"encoding"`
	// Output is the log output destination (stdout, stderr, file)
	Output string `yaml:"output"`
	// File is the log file path (only used when output is file)
	File string `yaml:"file"`
	// Debug enables debug mode for additional logging
	Debug bool `yaml:"debug"`
	// Caller enables caller information in logs
	Caller bool `yaml:"caller"`
	// Stacktrace enables stacktrace in error logs
	Stacktrace bool `yaml:"stacktrace"`
	// MaxSize is the maximum size of the log file in megabytes
	MaxSize int `yaml:"max_size"`
	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int `yaml:"max_backups"`
	// MaxAge is the maximum number of days to retain old log files
	MaxAge int `yaml:"max_age"`
	// Compress determines if the rotated log files should be compressed
	Compress bool `yaml:"compress"`
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validEncodings = map[string]bool{"json": true, "console": true}
var validOutputs = map[string]bool{"stdout": true, "stderr": true, "file": true}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Level == "" {
		return fmt.Errorf("logging: level is required")
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("logging: invalid level %q", c.Level)
	}

	if c.Encoding == "" {
		return fmt.Errorf("logging: encoding is required")
	}
	if !validEncodings[c.Encoding] {
		return fmt.Errorf("logging: invalid encoding %q", c.Encoding)
	}

	if c.Output == "" {
		return fmt.Errorf("logging: output is required")
	}
	if !validOutputs[c.Output] {
		return fmt.Errorf("logging: invalid output %q", c.Output)
	}
	if c.Output == "file" && c.File == "" {
		return fmt.Errorf("logging: file is required when output is \"file\"")
	}

	if c.MaxSize < 0 {
		return fmt.Errorf("logging: max_size cannot be negative")
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("logging: max_backups cannot be negative")
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("logging: max_age cannot be negative")
	}

	return nil
}

// Option configures a Config built by New.
type Option func(*Config)

// New creates a logging configuration from defaults, then applies opts.
func New(opts ...Option) *Config {
	cfg := &Config{
		Level:      DefaultLevel,
		Encoding:   DefaultEncoding,
		Output:     DefaultOutput,
		Debug:      DefaultDebug,
		Caller:     DefaultCaller,
		Stacktrace: DefaultStacktrace,
		MaxSize:    DefaultMaxSize,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAge,
		Compress:   DefaultCompress,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithLevel sets the logging level.
func WithLevel(level string) Option {
	return func(c *Config) { c.Level = level }
}

// WithEncoding sets the log encoding format.
func WithEncoding(encoding string) Option {
	return func(c *Config) { c.Encoding = encoding }
}

// WithOutput sets the log output destination.
func WithOutput(output string) Option {
	return func(c *Config) { c.Output = output }
}

// WithFile sets the log file path.
func WithFile(file string) Option {
	return func(c *Config) { c.File = file }
}

// WithDebug toggles debug mode.
func WithDebug(debug bool) Option {
	return func(c *Config) { c.Debug = debug }
}

// WithCaller toggles caller information in logs.
func WithCaller(caller bool) Option {
	return func(c *Config) { c.Caller = caller }
}

// WithStacktrace toggles stacktrace capture in error logs.
func WithStacktrace(stacktrace bool) Option {
	return func(c *Config) { c.Stacktrace = stacktrace }
}

// WithMaxSize sets the maximum log file size in megabytes.
func WithMaxSize(maxSize int) Option {
	return func(c *Config) { c.MaxSize = maxSize }
}

// WithMaxBackups sets the maximum number of retained rotated log files.
func WithMaxBackups(maxBackups int) Option {
	return func(c *Config) { c.MaxBackups = maxBackups }
}

// WithMaxAge sets the maximum retention age, in days, of rotated log files.
func WithMaxAge(maxAge int) Option {
	return func(c *Config) { c.MaxAge = maxAge }
}

// WithCompress toggles gzip compression of rotated log files.
func WithCompress(compress bool) Option {
	return func(c *Config) { c.Compress = compress }
}

// LoadFromViper reads the logger.* keys set by config.InitializeViper,
// following the teacher's per-section LoadFromViper convention rather than
// a struct-tag unmarshal.
func LoadFromViper(v *viper.Viper) *Config {
	return New(
		WithLevel(v.GetString("logger.level")),
		WithEncoding(v.GetString("logger.encoding")),
		WithOutput(v.GetString("logger.output")),
		WithFile(v.GetString("logger.file")),
		WithDebug(v.GetBool("logger.debug")),
		WithCaller(v.GetBool("logger.caller")),
		WithStacktrace(v.GetBool("logger.stacktrace")),
		WithMaxSize(v.GetInt("logger.max_size")),
		WithMaxBackups(v.GetInt("logger.max_backups")),
		WithMaxAge(v.GetInt("logger.max_age")),
		WithCompress(v.GetBool("logger.compress")),
	)
}
