package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/andrewkchan/podcrawl/internal/fetcher"
	"github.com/andrewkchan/podcrawl/internal/frontier"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/politeness"
	"github.com/andrewkchan/podcrawl/internal/store"
)

// podRuntime is one pod's fully-wired collaborators, built once at Init and
// used by the orchestrator's own process (seeding, the in-process leader
// fetcher, shutdown checks); spawned children build their own.
type podRuntime struct {
	id       int
	storeURL string
	client   store.Client
	enforcer *politeness.Enforcer
	manager  *frontier.Manager
}

// Orchestrator runs one engine invocation end to end: per-pod init, worker
// spawning, health monitoring, global-empty detection, and graceful
// shutdown, per spec.md §4.7.
type Orchestrator struct {
	cfg      Config
	log      logger.Interface
	runID    uuid.UUID
	spawner  spawner
	registry *store.Registry

	pods []*podRuntime

	health *healthMonitor

	shuttingDown atomic.Bool
}

// New constructs an Orchestrator. factory builds a store.Client for one
// pod's store_url; tests supply an in-memory factory instead of
// redisstore.New. A nil sp uses the real re-exec-self spawner.
func New(cfg Config, factory store.Factory, log logger.Interface, sp spawner) *Orchestrator {
	cfg = cfg.WithDefaults()

	if log == nil {
		log = logger.NewNoOp()
	}
	if sp == nil {
		sp = newExecSpawner(cfg.WorkerBinaryPath, cfg.WorkerExtraArgs)
	}

	pods := make([]*podRuntime, cfg.PodCount())
	for i := range pods {
		pods[i] = &podRuntime{id: i, storeURL: cfg.PodStoreURLs[i]}
	}

	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		runID:    uuid.New(),
		spawner:  sp,
		registry: store.NewRegistry(cfg.PodStoreURLs, factory),
		pods:     pods,
		health:   newHealthMonitor(log),
	}
}

// Init runs the one-time per-pod sequence: connect, ensure schema markers,
// build politeness + frontier, load seeds or resume, write pod:info.
func (o *Orchestrator) Init(ctx context.Context, seedURLs []string) error {
	for _, pod := range o.pods {
		client, err := o.registry.For(pod.id)
		if err != nil {
			return fmt.Errorf("orchestrator: connect pod %d: %w", pod.id, err)
		}
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("orchestrator: ping pod %d: %w", pod.id, err)
		}
		pod.client = client

		pod.enforcer = politeness.New(client, politeness.Config{
			PolitenessDelay: o.cfg.PolitenessDelay,
			RobotsCacheTTL:  o.cfg.RobotsCacheTTL,
			UserAgent:       o.cfg.resolvedUserAgent(),
		}, o.log.WithPod(pod.id))

		if err := pod.enforcer.Initialize(ctx, o.cfg.ExclusionFile, openFile); err != nil {
			return fmt.Errorf("orchestrator: load exclusions for pod %d: %w", pod.id, err)
		}

		pod.manager = frontier.New(pod.id, o.cfg.PodCount(), client, pod.enforcer, o.log.WithPod(pod.id))
		if err := pod.manager.Init(ctx, frontier.Config{
			BloomCapacity:   o.cfg.BloomCapacity,
			BloomFPR:        o.cfg.BloomFPR,
			Resume:          o.cfg.Resume,
			DebugAssignment: o.cfg.DebugPodAssignment,
		}); err != nil {
			return fmt.Errorf("orchestrator: init frontier for pod %d: %w", pod.id, err)
		}

		if err := writePodInfo(ctx, client, pod.id, pod.storeURL, o.runID); err != nil {
			return err
		}
	}

	n, err := o.loadSeeds(ctx, seedURLs)
	if err != nil {
		return err
	}
	o.log.Info("orchestrator: seeds loaded", "admitted", n)

	return nil
}

func (o *Orchestrator) loadSeeds(ctx context.Context, seedURLs []string) (int, error) {
	total := 0
	for _, pod := range o.pods {
		if o.cfg.Resume {
			// A pod that resumed keeps its frontier; one whose frontier was
			// empty falls through to seed loading like a fresh run.
			queued, err := pod.client.ListLen(ctx, "domains:queue")
			if err != nil {
				return total, fmt.Errorf("orchestrator: resume check for pod %d: %w", pod.id, err)
			}
			if queued > 0 {
				continue
			}
		}

		n, err := pod.manager.LoadSeeds(ctx, seedURLs)
		if err != nil {
			return total, fmt.Errorf("orchestrator: load seeds for pod %d: %w", pod.id, err)
		}
		total += n
	}
	return total, nil
}

// Run spawns every worker process (pod 0's fetcher worker 0 runs
// in-process), then blocks until a shutdown condition fires, then drains.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalShutdown := func() {
		o.shuttingDown.Store(true)
		cancel()
	}

	o.installSignalHandler(signalShutdown)

	if o.cfg.MaxDuration > 0 {
		timer := time.AfterFunc(o.cfg.MaxDuration, func() {
			o.log.Info("orchestrator: max_duration reached, signaling shutdown")
			signalShutdown()
		})
		defer timer.Stop()
	}

	clients := make([]store.Client, len(o.pods))
	for i, pod := range o.pods {
		clients[i] = pod.client
	}

	go watchGlobalEmpty(runCtx, clients, o.cfg.GlobalEmptyCheckInterval, o.cfg.GlobalEmptyGracePeriod, o.log, signalShutdown)

	if o.cfg.MaxPages > 0 {
		go o.watchMaxPages(runCtx, clients, signalShutdown)
	}

	var wg sync.WaitGroup

	// Leader pattern: pod 0's fetcher worker 0 runs in-process.
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.runLeaderFetcher(runCtx)
	}()

	o.spawnChildren(runCtx)

	<-runCtx.Done()
	o.shuttingDown.Store(true)

	o.log.Info("orchestrator: shutdown initiated, draining")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), o.cfg.ShutdownTimeout)
	defer drainCancel()

	if err := o.health.waitAll(drainCtx); err != nil {
		o.log.Warn("orchestrator: drain timed out, force-terminating stragglers", "error", err.Error())
		o.health.killAll()
	}

	wg.Wait()

	o.log.Info("orchestrator: shutdown complete",
		"dead_processes", o.health.DeadCount(),
		"unexpected_exits", o.health.UnexpectedCount())

	return nil
}

// runLeaderFetcher runs exactly worker 0 of pod 0's fetcher pool in the
// orchestrator's own process, per spec.md §4.7's leader pattern.
func (o *Orchestrator) runLeaderFetcher(ctx context.Context) {
	pod := o.pods[0]

	pool := fetcher.NewWorkerPool(pod.manager, pod.client, o.log.WithPod(0).WithWorker(0), fetcher.Config{
		WorkerCount:    1,
		UserAgent:      o.cfg.resolvedUserAgent(),
		RequestTimeout: o.cfg.HTTPTimeout,
		MaxRetries:     o.cfg.HTTPMaxRetries,
		SoftLimit:      o.cfg.SoftLimit,
		HardLimit:      o.cfg.HardLimit,
	})

	if err := pool.Start(ctx, 0); err != nil {
		o.log.Error("orchestrator: leader fetcher exited with error", "error", err.Error())
	}
}

// spawnChildren starts every fetcher and parser process besides pod 0's
// in-process worker 0, tracking each with the health monitor.
func (o *Orchestrator) spawnChildren(ctx context.Context) {
	for _, pod := range o.pods {
		startWorker := 0
		if pod.id == 0 {
			startWorker = 1 // worker 0 already runs in-process
		}

		for w := startWorker; w < o.cfg.FetchersPerPod; w++ {
			proc, err := o.spawner.Spawn(ctx, roleFetcher, pod.id, w)
			if err != nil {
				o.log.Error("orchestrator: failed to spawn fetcher process", "pod", pod.id, "worker", w, "error", err.Error())
				continue
			}
			o.health.track(proc, o.shuttingDown.Load)
		}

		for w := 0; w < o.cfg.ParsersPerPod; w++ {
			proc, err := o.spawner.Spawn(ctx, roleParser, pod.id, w)
			if err != nil {
				o.log.Error("orchestrator: failed to spawn parser process", "pod", pod.id, "worker", w, "error", err.Error())
				continue
			}
			o.health.track(proc, o.shuttingDown.Load)
		}
	}
}

func (o *Orchestrator) watchMaxPages(ctx context.Context, clients []store.Client, signalShutdown func()) {
	ticker := time.NewTicker(o.cfg.GlobalEmptyCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, crawled, err := sumQueuesAndCrawled(ctx, clients)
		if err != nil {
			continue
		}
		if crawled >= o.cfg.MaxPages {
			o.log.Info("orchestrator: max_pages reached, signaling shutdown", "crawled", crawled)
			signalShutdown()
			return
		}
	}
}

func (o *Orchestrator) installSignalHandler(signalShutdown func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		o.log.Info("orchestrator: signal received, shutting down", "signal", sig.String())
		signalShutdown()
	}()
}

// resolvedUserAgent substitutes Email into UserAgentTemplate's required
// {email} placeholder.
func (c Config) resolvedUserAgent() string {
	return strings.ReplaceAll(c.UserAgentTemplate, "{email}", c.Email)
}

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
