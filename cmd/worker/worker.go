// Package worker implements the hidden `worker` subcommand: the entry
// point an orchestrator.execSpawner child process re-execs into. It
// connects to its assigned pod's store, rebuilds that pod's frontier and
// politeness collaborators, and runs either a fetcher or a parser worker
// pool until its context is cancelled.
package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andrewkchan/podcrawl/internal/config"
	"github.com/andrewkchan/podcrawl/internal/config/crawler"
	"github.com/andrewkchan/podcrawl/internal/extract/htmlextract"
	"github.com/andrewkchan/podcrawl/internal/fetcher"
	"github.com/andrewkchan/podcrawl/internal/frontier"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/parser"
	"github.com/andrewkchan/podcrawl/internal/politeness"
	"github.com/andrewkchan/podcrawl/internal/store"
	"github.com/andrewkchan/podcrawl/internal/store/redisstore"
)

var (
	cfgFile    string
	email      string
	roleFlag   string
	podFlag    int
	workerFlag int
)

// Command builds the hidden `worker` subcommand.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run one fetcher or parser worker process (internal use)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.Flags().StringVar(&email, "email", "", "operator email for the user agent string")
	cmd.Flags().StringVar(&roleFlag, "role", "", "worker role: fetcher or parser")
	cmd.Flags().IntVar(&podFlag, "pod", 0, "pod id this process serves")
	cmd.Flags().IntVar(&workerFlag, "worker", 0, "process index within this pod's role")

	return cmd
}

// podCollaborators is one pod's connected store client, politeness
// enforcer, and frontier manager, rebuilt fresh in every worker process.
type podCollaborators struct {
	id      int
	client  store.Client
	manager *frontier.Manager
}

func run(ctx context.Context) error {
	if err := config.InitializeViper(cfgFile); err != nil {
		return fmt.Errorf("worker: initialize configuration: %w", err)
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("worker: load configuration: %w", err)
	}
	if err := appCfg.Validate(); err != nil {
		return fmt.Errorf("worker: invalid configuration: %w", err)
	}

	lc := appCfg.GetLoggerConfig()
	outputPaths := []string{lc.Output}
	if lc.Output == "file" {
		outputPaths = []string{lc.File}
	}
	log, err := logger.New(&logger.Config{
		Level:       logger.Level(lc.Level),
		Development: lc.Debug,
		Encoding:    lc.Encoding,
		OutputPaths: outputPaths,
	})
	if err != nil {
		return fmt.Errorf("worker: build logger: %w", err)
	}

	cc := appCfg.GetCrawlerConfig()
	cc.Email = email
	cc.DebugPodAssignment = config.DebugPodAssignment()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			cancel()
		}
	}()

	userAgent := strings.ReplaceAll(cc.UserAgentTemplate, "{email}", cc.Email)

	switch roleFlag {
	case "fetcher":
		return runFetcher(runCtx, log, cc, userAgent)
	case "parser":
		return runParser(runCtx, log, cc)
	default:
		return fmt.Errorf("worker: unknown role %q, expected fetcher or parser", roleFlag)
	}
}

// connectPod rebuilds one pod's store client, politeness enforcer, and
// frontier manager. Every worker process calls this independently; it is
// the re-exec model's price for not sharing in-process state across the
// orchestrator and its children.
func connectPod(ctx context.Context, podID int, storeURL string, cc *crawler.Config, log logger.Interface) (*podCollaborators, error) {
	client, err := redisstore.New(redisstore.Config{Addr: storeURL})
	if err != nil {
		return nil, fmt.Errorf("worker: connect pod %d: %w", podID, err)
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("worker: ping pod %d: %w", podID, err)
	}

	enforcer := politeness.New(client, politeness.Config{
		PolitenessDelay: cc.PolitenessDelay(),
		RobotsCacheTTL:  cc.RobotsCacheTTL(),
		UserAgent:       strings.ReplaceAll(cc.UserAgentTemplate, "{email}", cc.Email),
	}, log.WithPod(podID))

	if err := enforcer.Initialize(ctx, cc.ExclusionFile, openFile); err != nil {
		return nil, fmt.Errorf("worker: load exclusions for pod %d: %w", podID, err)
	}

	manager := frontier.New(podID, len(cc.Pods), client, enforcer, log.WithPod(podID))
	// Resume: a worker process always attaches to state the orchestrator
	// already initialized (and, if resuming, never re-clears).
	if err := manager.Init(ctx, frontier.Config{
		BloomCapacity:   cc.BloomFilterCapacity,
		BloomFPR:        cc.BloomFilterErrorRate,
		Resume:          true,
		DebugAssignment: cc.DebugPodAssignment,
	}); err != nil {
		return nil, fmt.Errorf("worker: init frontier for pod %d: %w", podID, err)
	}

	return &podCollaborators{id: podID, client: client, manager: manager}, nil
}

func runFetcher(ctx context.Context, log logger.Interface, cc *crawler.Config, userAgent string) error {
	storeURLs := cc.StoreURLs()
	if podFlag < 0 || podFlag >= len(storeURLs) {
		return fmt.Errorf("worker: pod %d out of range [0,%d)", podFlag, len(storeURLs))
	}

	pod, err := connectPod(ctx, podFlag, storeURLs[podFlag], cc, log)
	if err != nil {
		return err
	}
	defer pod.client.Close()

	workersPerProcess := cc.FetcherWorkers
	pool := fetcher.NewWorkerPool(pod.manager, pod.client, log.WithPod(podFlag), fetcher.Config{
		WorkerCount:    workersPerProcess,
		UserAgent:      userAgent,
		RequestTimeout: cc.HTTPTimeout(),
		MaxRetries:     cc.HTTPMaxRetries,
		SoftLimit:      cc.ParseQueueSoftLimit,
		HardLimit:      cc.ParseQueueHardLimit,
	})

	return pool.Start(ctx, workerFlag*workersPerProcess)
}

func runParser(ctx context.Context, log logger.Interface, cc *crawler.Config) error {
	storeURLs := cc.StoreURLs()
	if podFlag < 0 || podFlag >= len(storeURLs) {
		return fmt.Errorf("worker: pod %d out of range [0,%d)", podFlag, len(storeURLs))
	}

	pods := make([]*podCollaborators, len(storeURLs))
	for i, url := range storeURLs {
		pod, err := connectPod(ctx, i, url, cc, log)
		if err != nil {
			return err
		}
		defer pod.client.Close()
		pods[i] = pod
	}

	managers := make([]*frontier.Manager, len(pods))
	for i, pod := range pods {
		managers[i] = pod.manager
	}
	router := frontier.NewRouter(managers)

	own := pods[podFlag]

	workersPerProcess := cc.ParserWorkers
	pool := parser.NewWorkerPool(own.client, htmlextract.New(), router, log.WithPod(podFlag), parser.Config{
		WorkerCount: workersPerProcess,
		DataDirs:    cc.DataDirs,
	})

	return pool.Start(ctx, workerFlag*workersPerProcess)
}

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
