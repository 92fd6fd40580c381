package crawl

import (
	"fmt"
	"os"
	"time"

	"github.com/andrewkchan/podcrawl/internal/config"
	"github.com/andrewkchan/podcrawl/internal/frontier"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/orchestrator"
	"github.com/andrewkchan/podcrawl/internal/store"
	"github.com/andrewkchan/podcrawl/internal/store/redisstore"
)

// loadAppConfig wires viper (InitializeViper) and builds the aggregate
// Config, mirroring the teacher's Execute/initConfig sequence.
func loadAppConfig(cfgFile string) (*config.Config, error) {
	if err := config.InitializeViper(cfgFile); err != nil {
		return nil, fmt.Errorf("initialize configuration: %w", err)
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := appCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return appCfg, nil
}

// buildLogger constructs the engine's structured logger from the loaded
// logging section.
func buildLogger(cfg *config.Config) (logger.Interface, error) {
	lc := cfg.GetLoggerConfig()

	outputPaths := []string{lc.Output}
	if lc.Output == "file" {
		outputPaths = []string{lc.File}
	}

	log, err := logger.New(&logger.Config{
		Level:       logger.Level(lc.Level),
		Development: lc.Debug,
		Encoding:    lc.Encoding,
		OutputPaths: outputPaths,
		EnableColor: lc.Encoding == "console",
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return log, nil
}

// orchestratorConfig maps the crawler config section onto
// orchestrator.Config, the shape the engine's run loop actually consumes.
// maxPages and maxDurationSeconds are CLI-flag overrides; zero means "use
// the config file's value, if any".
func orchestratorConfig(cfg *config.Config, cfgFile, email string, maxPages, maxDurationSeconds int64, resume, debugPodAssignment bool) orchestrator.Config {
	cc := cfg.GetCrawlerConfig()

	workerExtraArgs := []string{"--config", cfgFile}
	if email != "" {
		workerExtraArgs = append(workerExtraArgs, "--email", email)
	}

	oc := orchestrator.Config{
		PodStoreURLs:             cc.StoreURLs(),
		DataDirs:                 cc.DataDirs,
		FetchersPerPod:           cc.FetchersPerPod,
		ParsersPerPod:            cc.ParsersPerPod,
		FetcherWorkersPerProcess: cc.FetcherWorkers,
		ParserWorkersPerProcess:  cc.ParserWorkers,
		PolitenessDelay:          cc.PolitenessDelay(),
		RobotsCacheTTL:           cc.RobotsCacheTTL(),
		HTTPTimeout:              cc.HTTPTimeout(),
		HTTPMaxRetries:           cc.HTTPMaxRetries,
		BloomCapacity:            cc.BloomFilterCapacity,
		BloomFPR:                 cc.BloomFilterErrorRate,
		SoftLimit:                cc.ParseQueueSoftLimit,
		HardLimit:                cc.ParseQueueHardLimit,
		UserAgentTemplate:        cc.UserAgentTemplate,
		Email:                    email,
		SeededURLsOnly:           cc.SeededURLsOnly,
		Resume:                   resume || cc.Resume,
		MaxPages:                 cc.MaxPagesValue(),
		MaxDuration:              cc.MaxDuration(),
		GlobalCoordinationPod:    cc.GlobalCoordinationRedisPod,
		DebugPodAssignment:       debugPodAssignment,
		SeedFile:                 cc.SeedFile,
		ExclusionFile:            cc.ExclusionFile,
		WorkerBinaryPath:         workerBinaryPath(),
		WorkerExtraArgs:          workerExtraArgs,
	}

	if maxPages > 0 {
		oc.MaxPages = maxPages
	}
	if maxDurationSeconds > 0 {
		oc.MaxDuration = time.Duration(maxDurationSeconds) * time.Second
	}

	return oc
}

// workerBinaryPath returns the path to re-exec for spawned fetcher/parser
// processes: the engine's own running binary.
func workerBinaryPath() string {
	path, err := os.Executable()
	if err != nil {
		return "podcrawl"
	}
	return path
}

// storeFactory builds a store.Factory that dials a pooled Redis client for
// each pod's store_url.
func storeFactory() store.Factory {
	return func(storeURL string) (store.Client, error) {
		return redisstore.New(redisstore.Config{Addr: storeURL})
	}
}

// readSeedFile reads and parses the seed file format, delegating to the
// frontier package's shared parser.
func readSeedFile(path string) ([]string, error) {
	return frontier.ReadSeedFile(path)
}
