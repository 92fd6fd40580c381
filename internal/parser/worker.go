// Package parser implements the per-pod parser worker pool: blocking-pop
// one pod's fetch:queue, extract text and links from the HTML payload,
// persist the text, route discovered links to their owning pods, and
// record the VisitedRecord.
package parser

import (
	"context"
	"fmt"
	"sync"

	"github.com/andrewkchan/podcrawl/internal/content"
	"github.com/andrewkchan/podcrawl/internal/extract"
	"github.com/andrewkchan/podcrawl/internal/fetcher"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/store"
	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

const (
	fetchQueueKey  = "fetch:queue"
	statsURLsAdded = "stats:urls_added"
)

// linkRouter routes discovered links to whichever pod owns each link's
// domain. *frontier.Router implements this.
type linkRouter interface {
	RouteAndAdd(ctx context.Context, urls []string, depth int) (int, error)
}

// WorkerPool runs a pod's fixed-size fleet of parser workers.
type WorkerPool struct {
	storeClient store.Client
	extractor   extract.Extractor
	router      linkRouter
	log         logger.Interface
	cfg         Config
}

// NewWorkerPool constructs a WorkerPool for one pod's parser process.
func NewWorkerPool(storeClient store.Client, extractor extract.Extractor, router linkRouter, log logger.Interface, cfg Config) *WorkerPool {
	cfg = cfg.WithDefaults()

	if log == nil {
		log = logger.NewNoOp()
	}

	return &WorkerPool{
		storeClient: storeClient,
		extractor:   extractor,
		router:      router,
		log:         log,
		cfg:         cfg,
	}
}

// Start launches cfg.WorkerCount worker goroutines. Blocks until ctx is
// cancelled, then waits for in-flight iterations to finish.
func (wp *WorkerPool) Start(ctx context.Context, workerIDOffset int) error {
	wp.log.Info("starting parser worker pool", "worker_count", wp.cfg.WorkerCount)

	var wg sync.WaitGroup

	for i := 0; i < wp.cfg.WorkerCount; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()
			wp.worker(ctx, workerID)
		}(workerIDOffset + i)
	}

	wg.Wait()
	wp.log.Info("parser worker pool stopped")

	return nil
}

func (wp *WorkerPool) worker(ctx context.Context, workerID int) {
	workerLog := wp.log.WithWorker(workerID)
	workerLog.Info("parser worker started")

	for {
		select {
		case <-ctx.Done():
			workerLog.Info("parser worker stopping")
			return
		default:
		}

		payload, ok, err := wp.storeClient.BlockingPopTail(ctx, fetchQueueKey, wp.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			workerLog.Error("blocking pop failed", "error", err.Error())
			continue
		}
		if !ok {
			continue
		}

		if err := wp.ProcessPayload(ctx, payload); err != nil {
			workerLog.Error("process parse job failed", "error", err.Error())
		}
	}
}

// ProcessPayload implements spec.md §4.6 steps 2-7 for one fetch:queue
// payload.
func (wp *WorkerPool) ProcessPayload(ctx context.Context, payload string) error {
	job, err := fetcher.DecodeParseJob(payload)
	if err != nil {
		return fmt.Errorf("parser: decode parse job: %w", err)
	}

	result, err := wp.extractor.Extract(job.HTMLBytes, job.URL)
	if err != nil {
		return fmt.Errorf("parser: extract: %w", err)
	}

	contentPath, err := wp.persistText(job.URL, result.Text)
	if err != nil {
		wp.log.Warn("parser: persist content failed", "url", job.URL, "error", err)
		contentPath = ""
	}

	if len(result.Links) > 0 {
		added, routeErr := wp.router.RouteAndAdd(ctx, result.Links, job.Depth+1)
		if routeErr != nil {
			wp.log.Warn("parser: route links failed", "url", job.URL, "error", routeErr)
		} else if added > 0 {
			if _, err := wp.storeClient.IncrBy(ctx, statsURLsAdded, int64(added)); err != nil {
				wp.log.Warn("parser: increment stats counter failed", "error", err)
			}
		}
	}

	rec := fetcher.VisitedRecord{
		URL:         job.URL,
		StatusCode:  job.StatusCode,
		ContentPath: contentPath,
		ContentType: job.ContentType,
	}
	if err := fetcher.WriteVisitedRecord(ctx, wp.storeClient, rec); err != nil {
		return fmt.Errorf("parser: write visited record: %w", err)
	}

	return nil
}

// persistText chooses a content root by URL hash and writes the extracted
// text there. Empty text is skipped, per spec.md §4.6.
func (wp *WorkerPool) persistText(rawURL, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	root, err := content.RootForURL(rawURL, wp.cfg.DataDirs)
	if err != nil {
		return "", err
	}

	hash := urlutil.ContentHash(rawURL)

	return content.SaveContentToFile(hash, text, root)
}
