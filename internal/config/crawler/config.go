// Package crawler provides configuration for the pod-sharded crawl engine:
// pod store URLs, content directories, worker-process/worker-task counts,
// politeness and backpressure thresholds, and the run's scope (seeded-only,
// resume, max pages/duration).
package crawler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values, applied by New. Validate does not fill in
// zero values.
const (
	DefaultFetchersPerPod           = 6
	DefaultParsersPerPod            = 2
	DefaultFetcherWorkers           = 200
	DefaultParserWorkers            = 50
	DefaultPolitenessDelaySeconds   = 70
	DefaultRobotsCacheTTLSeconds    = 86400
	DefaultHTTPTimeoutSeconds       = 30
	DefaultHTTPMaxRetries           = 3
	DefaultBloomFilterCapacity      = 10_000_000
	DefaultBloomFilterErrorRate     = 0.01
	DefaultParseQueueSoftLimit      = 20_000
	DefaultParseQueueHardLimit      = 80_000
	DefaultUserAgentTemplate        = "podcrawl/1.0 (+mailto:{email})"
	DefaultGlobalCoordinationRedisPod = 0
)

// PodConfig is one pod's `pods[]` entry.
type PodConfig struct {
	// StoreURL is the opaque connection string the store client consumes.
	StoreURL string `env:"-" yaml:"store_url"`
}

// Config is the engine's §6 external-interface configuration surface.
type Config struct {
	// Pods is the ordered pod list; its length is N, the pod count.
	Pods []PodConfig `env:"-" yaml:"pods"`
	// DataDirs is one or more content-storage roots; content is sharded
	// across them by URL hash.
	DataDirs []string `env:"CRAWLER_DATA_DIRS" yaml:"data_dirs"`
	// LogDir is read from configuration; no log file is written under it.
	LogDir string `env:"CRAWLER_LOG_DIR" yaml:"log_dir"`

	FetchersPerPod int `env:"CRAWLER_FETCHERS_PER_POD" yaml:"fetchers_per_pod"`
	ParsersPerPod  int `env:"CRAWLER_PARSERS_PER_POD" yaml:"parsers_per_pod"`
	FetcherWorkers int `env:"CRAWLER_FETCHER_WORKERS" yaml:"fetcher_workers"`
	ParserWorkers  int `env:"CRAWLER_PARSER_WORKERS" yaml:"parser_workers"`

	// EnableCPUAffinity and CoresPerPod are read from configuration; no
	// process is pinned to a core on any platform.
	EnableCPUAffinity bool `env:"CRAWLER_ENABLE_CPU_AFFINITY" yaml:"enable_cpu_affinity"`
	CoresPerPod       int  `env:"CRAWLER_CORES_PER_POD" yaml:"cores_per_pod"`

	PolitenessDelaySeconds int `env:"CRAWLER_POLITENESS_DELAY_SECONDS" yaml:"politeness_delay_seconds"`
	RobotsCacheTTLSeconds  int `env:"CRAWLER_ROBOTS_CACHE_TTL_SECONDS" yaml:"robots_cache_ttl_seconds"`

	HTTPTimeoutSeconds int `env:"CRAWLER_HTTP_TIMEOUT_SECONDS" yaml:"http_timeout_seconds"`
	HTTPMaxRetries     int `env:"CRAWLER_HTTP_MAX_RETRIES" yaml:"http_max_retries"`

	BloomFilterCapacity  uint    `env:"CRAWLER_BLOOM_FILTER_CAPACITY" yaml:"bloom_filter_capacity"`
	BloomFilterErrorRate float64 `env:"CRAWLER_BLOOM_FILTER_ERROR_RATE" yaml:"bloom_filter_error_rate"`

	ParseQueueSoftLimit int64 `env:"CRAWLER_PARSE_QUEUE_SOFT_LIMIT" yaml:"parse_queue_soft_limit"`
	ParseQueueHardLimit int64 `env:"CRAWLER_PARSE_QUEUE_HARD_LIMIT" yaml:"parse_queue_hard_limit"`

	// UserAgentTemplate must contain the {email} placeholder.
	UserAgentTemplate string `env:"CRAWLER_USER_AGENT_TEMPLATE" yaml:"user_agent_template"`

	SeededURLsOnly bool   `env:"CRAWLER_SEEDED_URLS_ONLY" yaml:"seeded_urls_only"`
	Resume         bool   `env:"CRAWLER_RESUME" yaml:"resume"`
	// MaxPages is the global page budget across all pods; nil is unlimited.
	MaxPages *int64 `env:"-" yaml:"max_pages"`
	// MaxDurationSeconds bounds the run's wall-clock time; nil is unlimited.
	MaxDurationSeconds *int64 `env:"-" yaml:"max_duration"`

	// GlobalCoordinationRedisPod must index a configured pod; no
	// shutdown-coordination keys are written to that pod's store.
	GlobalCoordinationRedisPod int `env:"CRAWLER_GLOBAL_COORDINATION_REDIS_POD" yaml:"global_coordination_redis_pod"`

	SeedFile      string `env:"CRAWLER_SEED_FILE" yaml:"seed_file"`
	ExclusionFile string `env:"CRAWLER_EXCLUSION_FILE" yaml:"exclusion_file"`

	// Email fills UserAgentTemplate's {email} placeholder; sourced from
	// the --email flag, not a YAML key.
	Email string `env:"-" yaml:"-"`

	// DebugPodAssignment is read directly from CRAWLER_DEBUG_POD_ASSIGNMENT,
	// bypassing viper, per spec.md §6's "environment toggle" wording.
	DebugPodAssignment bool `env:"-" yaml:"-"`
}

// Validate checks the engine configuration for fatal init failures: no
// pods configured, no data directories, a user agent template missing its
// {email} placeholder.
func (c *Config) Validate() error {
	if len(c.Pods) == 0 {
		return errors.New("crawler: at least one pod must be configured")
	}
	for i, pod := range c.Pods {
		if strings.TrimSpace(pod.StoreURL) == "" {
			return fmt.Errorf("crawler: pods[%d].store_url is required", i)
		}
	}
	if len(c.DataDirs) == 0 {
		return errors.New("crawler: at least one data_dirs entry is required")
	}
	if c.FetchersPerPod < 1 {
		return errors.New("crawler: fetchers_per_pod must be positive")
	}
	if c.ParsersPerPod < 1 {
		return errors.New("crawler: parsers_per_pod must be positive")
	}
	if c.FetcherWorkers < 1 {
		return errors.New("crawler: fetcher_workers must be positive")
	}
	if c.ParserWorkers < 1 {
		return errors.New("crawler: parser_workers must be positive")
	}
	if c.PolitenessDelaySeconds < 0 {
		return errors.New("crawler: politeness_delay_seconds must be non-negative")
	}
	if c.HTTPTimeoutSeconds < 1 {
		return errors.New("crawler: http_timeout_seconds must be positive")
	}
	if c.BloomFilterErrorRate <= 0 || c.BloomFilterErrorRate >= 1 {
		return errors.New("crawler: bloom_filter_error_rate must be in (0, 1)")
	}
	if c.ParseQueueSoftLimit <= 0 || c.ParseQueueHardLimit <= 0 {
		return errors.New("crawler: parse_queue_soft_limit and parse_queue_hard_limit must be positive")
	}
	if c.ParseQueueSoftLimit > c.ParseQueueHardLimit {
		return errors.New("crawler: parse_queue_soft_limit must not exceed parse_queue_hard_limit")
	}
	if !strings.Contains(c.UserAgentTemplate, "{email}") {
		return errors.New("crawler: user_agent_template must contain the {email} placeholder")
	}
	if c.GlobalCoordinationRedisPod < 0 || c.GlobalCoordinationRedisPod >= len(c.Pods) {
		return errors.New("crawler: global_coordination_redis_pod must index an existing pod")
	}
	return nil
}

// PolitenessDelay returns PolitenessDelaySeconds as a time.Duration.
func (c *Config) PolitenessDelay() time.Duration {
	return time.Duration(c.PolitenessDelaySeconds) * time.Second
}

// RobotsCacheTTL returns RobotsCacheTTLSeconds as a time.Duration.
func (c *Config) RobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLSeconds) * time.Second
}

// HTTPTimeout returns HTTPTimeoutSeconds as a time.Duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// MaxDuration returns MaxDurationSeconds as a time.Duration, zero if unset.
func (c *Config) MaxDuration() time.Duration {
	if c.MaxDurationSeconds == nil {
		return 0
	}
	return time.Duration(*c.MaxDurationSeconds) * time.Second
}

// MaxPagesValue returns MaxPages, zero if unset.
func (c *Config) MaxPagesValue() int64 {
	if c.MaxPages == nil {
		return 0
	}
	return *c.MaxPages
}

// StoreURLs returns the ordered list of pod store URLs.
func (c *Config) StoreURLs() []string {
	urls := make([]string, len(c.Pods))
	for i, pod := range c.Pods {
		urls[i] = pod.StoreURL
	}
	return urls
}

// New creates an engine configuration from defaults, then applies opts.
func New(opts ...Option) *Config {
	cfg := &Config{
		FetchersPerPod:             DefaultFetchersPerPod,
		ParsersPerPod:              DefaultParsersPerPod,
		FetcherWorkers:             DefaultFetcherWorkers,
		ParserWorkers:              DefaultParserWorkers,
		PolitenessDelaySeconds:     DefaultPolitenessDelaySeconds,
		RobotsCacheTTLSeconds:      DefaultRobotsCacheTTLSeconds,
		HTTPTimeoutSeconds:         DefaultHTTPTimeoutSeconds,
		HTTPMaxRetries:             DefaultHTTPMaxRetries,
		BloomFilterCapacity:        DefaultBloomFilterCapacity,
		BloomFilterErrorRate:       DefaultBloomFilterErrorRate,
		ParseQueueSoftLimit:        DefaultParseQueueSoftLimit,
		ParseQueueHardLimit:        DefaultParseQueueHardLimit,
		UserAgentTemplate:          DefaultUserAgentTemplate,
		GlobalCoordinationRedisPod: DefaultGlobalCoordinationRedisPod,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Option configures a Config built by New.
type Option func(*Config)

// WithPods sets the pod list.
func WithPods(pods []PodConfig) Option {
	return func(c *Config) { c.Pods = pods }
}

// WithDataDirs sets the content-storage roots.
func WithDataDirs(dirs []string) Option {
	return func(c *Config) { c.DataDirs = dirs }
}

// WithSeedFile sets the seed file path.
func WithSeedFile(path string) Option {
	return func(c *Config) { c.SeedFile = path }
}

// WithEmail sets the UserAgentTemplate {email} substitution.
func WithEmail(email string) Option {
	return func(c *Config) { c.Email = email }
}

// WithMaxPages sets the global page budget.
func WithMaxPages(n int64) Option {
	return func(c *Config) { c.MaxPages = &n }
}

// WithMaxDuration sets the run's wall-clock budget, in seconds.
func WithMaxDuration(seconds int64) Option {
	return func(c *Config) { c.MaxDurationSeconds = &seconds }
}

// WithResume toggles resume mode.
func WithResume(resume bool) Option {
	return func(c *Config) { c.Resume = resume }
}

// WithDebugPodAssignment toggles the CRAWLER_DEBUG_POD_ASSIGNMENT switch.
func WithDebugPodAssignment(debug bool) Option {
	return func(c *Config) { c.DebugPodAssignment = debug }
}

// LoadFromViper reads the crawler.* keys set by config.InitializeViper,
// following the teacher's per-section LoadFromViper convention rather than
// a struct-tag unmarshal.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := New(
		WithDataDirs(v.GetStringSlice("crawler.data_dirs")),
		WithSeedFile(v.GetString("crawler.seed_file")),
	)

	cfg.Pods = loadPods(v)
	cfg.LogDir = v.GetString("crawler.log_dir")
	cfg.FetchersPerPod = v.GetInt("crawler.fetchers_per_pod")
	cfg.ParsersPerPod = v.GetInt("crawler.parsers_per_pod")
	cfg.FetcherWorkers = v.GetInt("crawler.fetcher_workers")
	cfg.ParserWorkers = v.GetInt("crawler.parser_workers")
	cfg.EnableCPUAffinity = v.GetBool("crawler.enable_cpu_affinity")
	cfg.CoresPerPod = v.GetInt("crawler.cores_per_pod")
	cfg.PolitenessDelaySeconds = v.GetInt("crawler.politeness_delay_seconds")
	cfg.RobotsCacheTTLSeconds = v.GetInt("crawler.robots_cache_ttl_seconds")
	cfg.HTTPTimeoutSeconds = v.GetInt("crawler.http_timeout_seconds")
	cfg.HTTPMaxRetries = v.GetInt("crawler.http_max_retries")
	cfg.BloomFilterCapacity = uint(v.GetInt64("crawler.bloom_filter_capacity"))
	cfg.BloomFilterErrorRate = v.GetFloat64("crawler.bloom_filter_error_rate")
	cfg.ParseQueueSoftLimit = v.GetInt64("crawler.parse_queue_soft_limit")
	cfg.ParseQueueHardLimit = v.GetInt64("crawler.parse_queue_hard_limit")
	cfg.UserAgentTemplate = v.GetString("crawler.user_agent_template")
	cfg.SeededURLsOnly = v.GetBool("crawler.seeded_urls_only")
	cfg.Resume = v.GetBool("crawler.resume")
	cfg.GlobalCoordinationRedisPod = v.GetInt("crawler.global_coordination_redis_pod")
	cfg.ExclusionFile = v.GetString("crawler.exclusion_file")

	if v.IsSet("crawler.max_pages") {
		n := v.GetInt64("crawler.max_pages")
		cfg.MaxPages = &n
	}
	if v.IsSet("crawler.max_duration") {
		n := v.GetInt64("crawler.max_duration")
		cfg.MaxDurationSeconds = &n
	}

	return cfg
}

// loadPods reads the crawler.pods list, each entry a map with a
// "store_url" key, without relying on a struct-tag unmarshal.
func loadPods(v *viper.Viper) []PodConfig {
	raw, ok := v.Get("crawler.pods").([]interface{})
	if !ok {
		return nil
	}

	pods := make([]PodConfig, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		url, _ := m["store_url"].(string)
		pods = append(pods, PodConfig{StoreURL: url})
	}

	return pods
}
