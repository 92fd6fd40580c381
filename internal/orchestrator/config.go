// Package orchestrator wires together one process run of the engine: it
// initializes every pod's frontier and politeness enforcer over a shared
// store registry, runs pod 0's fetcher worker 0 in-process, spawns every
// other fetcher and parser as a child process, and watches for the
// conditions (signal, global-empty frontier, page/duration limits) that end
// the run.
package orchestrator

import "time"

// Default configuration values.
const (
	defaultFetchersPerPod           = 6
	defaultParsersPerPod            = 2
	defaultFetcherWorkersPerProcess = 200
	defaultParserWorkersPerProcess  = 50
	defaultPolitenessDelay          = 70 * time.Second
	defaultRobotsCacheTTL           = 24 * time.Hour
	defaultHTTPTimeout              = 30 * time.Second
	defaultHTTPMaxRetries           = 3
	defaultBloomCapacity            = 10_000_000
	defaultBloomFPR                 = 0.01
	defaultSoftLimit                = 20_000
	defaultHardLimit                = 80_000
	defaultUserAgentTemplate        = "podcrawl/1.0 (+mailto:{email})"
	defaultGlobalEmptyGracePeriod   = 60 * time.Second
	defaultGlobalEmptyCheckInterval = 5 * time.Second
	defaultShutdownTimeout          = 10 * time.Second
	defaultHealthCheckInterval      = 5 * time.Second
)

// Config holds one run's full engine configuration, the typed realization
// of spec.md §6's recognized YAML options plus its CLI overrides.
type Config struct {
	// PodStoreURLs is the ordered `pods[].store_url` list; its length is N.
	PodStoreURLs []string
	// DataDirs is `data_dirs`: one or more content-storage roots.
	DataDirs []string

	FetchersPerPod           int
	ParsersPerPod            int
	FetcherWorkersPerProcess int
	ParserWorkersPerProcess  int

	PolitenessDelay time.Duration
	RobotsCacheTTL  time.Duration

	HTTPTimeout    time.Duration
	HTTPMaxRetries int

	BloomCapacity uint
	BloomFPR      float64

	SoftLimit int64
	HardLimit int64

	// UserAgentTemplate must contain the {email} placeholder, filled in
	// with Email before use.
	UserAgentTemplate string
	// Email replaces the {email} placeholder in UserAgentTemplate, sourced
	// from the --email flag.
	Email string

	SeededURLsOnly bool
	Resume         bool
	// MaxPages is the global page budget across all pods; zero is unlimited.
	MaxPages int64
	// MaxDuration bounds the run's wall-clock time; zero is unlimited.
	MaxDuration time.Duration

	// GlobalCoordinationPod is carried over from the configuration, default
	// 0; the orchestrator writes no shutdown-coordination keys to it.
	GlobalCoordinationPod int

	DebugPodAssignment bool

	SeedFile      string
	ExclusionFile string

	GlobalEmptyGracePeriod   time.Duration
	GlobalEmptyCheckInterval time.Duration
	ShutdownTimeout          time.Duration
	HealthCheckInterval      time.Duration

	// WorkerBinaryPath is the executable re-invoked (with role/pod/worker
	// flags) to spawn every fetcher and parser process besides pod 0's
	// in-process fetcher worker 0.
	WorkerBinaryPath string
	// WorkerExtraArgs are appended to every spawned child's argument list,
	// e.g. ["--config", path].
	WorkerExtraArgs []string
}

// WithDefaults returns a copy of c with default values applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	if c.FetchersPerPod <= 0 {
		c.FetchersPerPod = defaultFetchersPerPod
	}
	if c.ParsersPerPod <= 0 {
		c.ParsersPerPod = defaultParsersPerPod
	}
	if c.FetcherWorkersPerProcess <= 0 {
		c.FetcherWorkersPerProcess = defaultFetcherWorkersPerProcess
	}
	if c.ParserWorkersPerProcess <= 0 {
		c.ParserWorkersPerProcess = defaultParserWorkersPerProcess
	}
	if c.PolitenessDelay <= 0 {
		c.PolitenessDelay = defaultPolitenessDelay
	}
	if c.RobotsCacheTTL <= 0 {
		c.RobotsCacheTTL = defaultRobotsCacheTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.HTTPMaxRetries <= 0 {
		c.HTTPMaxRetries = defaultHTTPMaxRetries
	}
	if c.BloomCapacity == 0 {
		c.BloomCapacity = defaultBloomCapacity
	}
	if c.BloomFPR <= 0 {
		c.BloomFPR = defaultBloomFPR
	}
	if c.SoftLimit <= 0 {
		c.SoftLimit = defaultSoftLimit
	}
	if c.HardLimit <= 0 {
		c.HardLimit = defaultHardLimit
	}
	if c.UserAgentTemplate == "" {
		c.UserAgentTemplate = defaultUserAgentTemplate
	}
	if c.GlobalEmptyGracePeriod <= 0 {
		c.GlobalEmptyGracePeriod = defaultGlobalEmptyGracePeriod
	}
	if c.GlobalEmptyCheckInterval <= 0 {
		c.GlobalEmptyCheckInterval = defaultGlobalEmptyCheckInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	return c
}

// PodCount returns N, the number of pods configured.
func (c Config) PodCount() int {
	return len(c.PodStoreURLs)
}
