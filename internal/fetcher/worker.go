package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/andrewkchan/podcrawl/internal/frontier"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/store"
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

const fetchQueueKey = "fetch:queue"

// urlSource is the subset of *frontier.Manager the worker pool depends on.
type urlSource interface {
	GetNextURL(ctx context.Context) (*frontier.Entry, error)
	MarkSeen(url string)
}

// WorkerPool runs a pod's fixed-size fleet of fetcher workers: get-next-URL,
// HTTP GET with retries, push to fetch:queue with backpressure, or record a
// VisitedRecord directly for non-parseable outcomes.
type WorkerPool struct {
	frontierSrc    urlSource
	storeClient    store.Client
	httpClient     *http.Client
	log            logger.Interface
	cfg            Config
	startupLimiter *rate.Limiter
}

// NewWorkerPool constructs a WorkerPool for one pod's fetcher process.
func NewWorkerPool(frontierSrc urlSource, storeClient store.Client, log logger.Interface, cfg Config) *WorkerPool {
	cfg = cfg.WithDefaults()

	if log == nil {
		log = logger.NewNoOp()
	}

	client := &http.Client{
		Timeout:       cfg.RequestTimeout,
		CheckRedirect: RedirectPolicy(cfg.MaxRedirects),
	}

	// Admit StaggerGroupSize workers immediately (the burst), then trickle
	// the rest in over StaggerMaxDelay so a freshly started process doesn't
	// fire WorkerCount requests in the same instant.
	admitRate := rate.Limit(float64(cfg.WorkerCount) / cfg.StaggerMaxDelay.Seconds())

	return &WorkerPool{
		frontierSrc:    frontierSrc,
		storeClient:    storeClient,
		httpClient:     client,
		log:            log,
		cfg:            cfg,
		startupLimiter: rate.NewLimiter(admitRate, cfg.StaggerGroupSize),
	}
}

// Start launches cfg.WorkerCount worker goroutines, admitted through a
// startup rate limiter so they don't all issue their first request in
// lockstep. Blocks until ctx is cancelled, then waits for in-flight
// iterations to finish.
func (wp *WorkerPool) Start(ctx context.Context, workerIDOffset int) error {
	wp.log.Info("starting fetcher worker pool", "worker_count", wp.cfg.WorkerCount)

	var wg sync.WaitGroup

	for i := 0; i < wp.cfg.WorkerCount; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			if err := wp.startupLimiter.Wait(ctx); err != nil {
				return
			}

			wp.worker(ctx, workerID)
		}(workerIDOffset + i)
	}

	wg.Wait()
	wp.log.Info("fetcher worker pool stopped")

	return nil
}

// worker is a single worker's cooperative loop.
func (wp *WorkerPool) worker(ctx context.Context, workerID int) {
	workerLog := wp.log.WithWorker(workerID)
	workerLog.Info("fetcher worker started")

	for {
		select {
		case <-ctx.Done():
			workerLog.Info("fetcher worker stopping")
			return
		default:
		}

		entry, err := wp.frontierSrc.GetNextURL(ctx)
		if err != nil {
			workerLog.Error("get next url failed", "error", err.Error())
			if !sleepOrCancel(ctx, wp.cfg.IdleRetryDelay) {
				return
			}
			continue
		}

		if entry == nil {
			if !sleepOrCancel(ctx, wp.cfg.IdleRetryDelay) {
				return
			}
			continue
		}

		if err := wp.ProcessURL(ctx, workerLog, entry); err != nil {
			workerLog.Error("process url failed", "url", entry.URL, "error", err.Error())
		}

		// Cooperative yield between URL units of work.
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// ProcessURL implements the fetch/classify/enqueue-or-record contract for
// one frontier entry: fetch, then push a ParseJob for 2xx HTML or write a
// VisitedRecord directly for everything else.
func (wp *WorkerPool) ProcessURL(ctx context.Context, log logger.Interface, entry *frontier.Entry) error {
	wp.frontierSrc.MarkSeen(entry.URL)

	prior, _, priorErr := ReadVisitedRecord(ctx, wp.storeClient, entry.URL)
	if priorErr != nil {
		log.Warn("read prior visited record failed", "url", entry.URL, "error", priorErr.Error())
	}

	fr, fetchErr := wp.fetchWithRetries(ctx, entry.URL, prior.ETag, prior.LastModified)
	if fetchErr != nil {
		log.Info("fetch failed", "url", entry.URL, "error", fetchErr.Error())
		return WriteVisitedRecord(ctx, wp.storeClient, VisitedRecord{URL: entry.URL})
	}

	if fr.statusCode == http.StatusNotModified {
		log.Info("fetch not modified, reusing prior content", "url", entry.URL)
		return WriteVisitedRecord(ctx, wp.storeClient, VisitedRecord{
			URL:          entry.URL,
			StatusCode:   fr.statusCode,
			ContentPath:  prior.ContentPath,
			ContentType:  prior.ContentType,
			ETag:         fr.etag,
			LastModified: fr.lastModified,
		})
	}

	if fr.statusCode < 200 || fr.statusCode >= 300 {
		log.Info("fetch returned non-2xx", "url", entry.URL, "status_code", fr.statusCode)
		return WriteVisitedRecord(ctx, wp.storeClient, VisitedRecord{
			URL: entry.URL, StatusCode: fr.statusCode, ContentType: fr.contentType,
		})
	}

	if !isHTML(fr.contentType) {
		return WriteVisitedRecord(ctx, wp.storeClient, VisitedRecord{
			URL: entry.URL, StatusCode: fr.statusCode, ContentType: fr.contentType,
		})
	}

	job := ParseJob{
		URL:              fr.finalURL,
		Domain:           entry.Domain,
		Depth:            entry.Depth,
		HTMLBytes:        fr.body,
		ContentType:      fr.contentType,
		CrawledTimestamp: time.Now().Unix(),
		StatusCode:       fr.statusCode,
	}

	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("fetcher: encode parse job: %w", err)
	}

	if err := wp.storeClient.ListPrepend(ctx, fetchQueueKey, payload); err != nil {
		return fmt.Errorf("fetcher: push parse job: %w", err)
	}

	return wp.ApplyBackpressure(ctx)
}

// ApplyBackpressure observes fetch:queue's length immediately after a push
// and sleeps or blocks per spec.md §5.
func (wp *WorkerPool) ApplyBackpressure(ctx context.Context) error {
	length, err := wp.storeClient.ListLen(ctx, fetchQueueKey)
	if err != nil {
		return fmt.Errorf("fetcher: check queue length: %w", err)
	}

	if length <= wp.cfg.HardLimit {
		delay := backpressureDelay(length, wp.cfg.SoftLimit, wp.cfg.HardLimit, wp.cfg.BackpressureBase)
		if delay > 0 {
			sleepOrCancel(ctx, delay)
		}
		return nil
	}

	// Above hard limit: block, rechecking every few seconds, until the
	// queue falls back to soft_limit or below.
	for length > wp.cfg.SoftLimit {
		if !sleepOrCancel(ctx, wp.cfg.RecheckInterval) {
			return nil
		}

		length, err = wp.storeClient.ListLen(ctx, fetchQueueKey)
		if err != nil {
			return fmt.Errorf("fetcher: check queue length: %w", err)
		}
	}

	return nil
}

// fetchResult is one GET's outcome.
type fetchResult struct {
	body         []byte
	statusCode   int
	finalURL     string
	contentType  string
	etag         string
	lastModified string
}

// fetchWithRetries issues the GET, retrying transient failures up to
// cfg.MaxRetries times. priorETag/priorLastModified, when non-empty, are
// sent as If-None-Match/If-Modified-Since so an unchanged page resolves to
// a cheap 304 instead of a full re-fetch.
func (wp *WorkerPool) fetchWithRetries(ctx context.Context, rawURL, priorETag, priorLastModified string) (fetchResult, error) {
	var lastErr error

	for attempt := 0; attempt <= wp.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if !sleepOrCancel(ctx, retryBackoff(attempt)) {
				return fetchResult{}, ctx.Err()
			}
		}

		fr, err := wp.fetchOnce(ctx, rawURL, priorETag, priorLastModified)
		if err == nil {
			return fr, nil
		}

		lastErr = err
		if errors.Is(err, ErrTooManyRedirects) {
			// Not transient: following more redirects wouldn't help.
			return fetchResult{}, lastErr
		}
		// Everything else reaching here (dial/timeout/DNS/body-read
		// failures) is treated as transient per spec.md §7 and retried.
	}

	return fetchResult{}, lastErr
}

func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}

func (wp *WorkerPool) fetchOnce(ctx context.Context, rawURL, priorETag, priorLastModified string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fetchResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", wp.cfg.UserAgent)
	if priorETag != "" {
		req.Header.Set("If-None-Match", priorETag)
	}
	if priorLastModified != "" {
		req.Header.Set("If-Modified-Since", priorLastModified)
	}

	resp, err := wp.httpClient.Do(req)
	if err != nil {
		return fetchResult{}, fmt.Errorf("http fetch: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseBodyBytes)
	data, readErr := io.ReadAll(limited)
	if readErr != nil {
		return fetchResult{statusCode: resp.StatusCode}, fmt.Errorf("read response body: %w", readErr)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return fetchResult{
		body:         data,
		statusCode:   resp.StatusCode,
		finalURL:     final,
		contentType:  resp.Header.Get("Content-Type"),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}
