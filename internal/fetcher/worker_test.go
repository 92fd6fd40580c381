package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/fetcher"
	"github.com/andrewkchan/podcrawl/internal/frontier"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/politeness"
	"github.com/andrewkchan/podcrawl/internal/store/storetest"
)

func newTestPool(t *testing.T, cfg fetcher.Config) (*fetcher.WorkerPool, *frontier.Manager, *storetest.Memory) {
	t.Helper()

	mem := storetest.New()
	enforcer := politeness.New(mem, politeness.Config{PolitenessDelay: 0}, nil)
	mgr := frontier.New(0, 1, mem, enforcer, nil)
	require.NoError(t, mgr.Init(context.Background(), frontier.Config{BloomCapacity: 1000, BloomFPR: 0.01}))

	pool := fetcher.NewWorkerPool(mgr, mem, nil, cfg)

	return pool, mgr, mem
}

func TestProcessURLPushesParseJobOnSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	pool, mgr, mem := newTestPool(t, fetcher.Config{WorkerCount: 1})
	ctx := context.Background()

	_, err := mgr.AddURLsBatch(ctx, []string{srv.URL + "/page"}, 0)
	require.NoError(t, err)

	entry, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.NoError(t, pool.ProcessURL(ctx, logger.NewNoOp(), entry))

	length, err := mem.ListLen(ctx, "fetch:queue")
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestProcessURLRecordsVisitedOnNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pool, mgr, mem := newTestPool(t, fetcher.Config{WorkerCount: 1, MaxRetries: 0})
	ctx := context.Background()

	_, err := mgr.AddURLsBatch(ctx, []string{srv.URL + "/missing"}, 0)
	require.NoError(t, err)

	entry, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.NoError(t, pool.ProcessURL(ctx, logger.NewNoOp(), entry))

	length, err := mem.ListLen(ctx, "fetch:queue")
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestProcessURLRecordsVisitedOnNonHTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	pool, mgr, mem := newTestPool(t, fetcher.Config{WorkerCount: 1})
	ctx := context.Background()

	_, err := mgr.AddURLsBatch(ctx, []string{srv.URL + "/file.pdf"}, 0)
	require.NoError(t, err)

	entry, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.NoError(t, pool.ProcessURL(ctx, logger.NewNoOp(), entry))

	length, err := mem.ListLen(ctx, "fetch:queue")
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestProcessURLFollowsRedirectsAndUsesFinalURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			w.Header().Set("Location", "/final")
			w.WriteHeader(http.StatusMovedPermanently)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>final</body></html>"))
	}))
	defer srv.Close()

	pool, mgr, mem := newTestPool(t, fetcher.Config{WorkerCount: 1})
	ctx := context.Background()

	_, err := mgr.AddURLsBatch(ctx, []string{srv.URL + "/start"}, 0)
	require.NoError(t, err)

	entry, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.NoError(t, pool.ProcessURL(ctx, logger.NewNoOp(), entry))

	payload, ok, err := mem.ListPopTail(ctx, "fetch:queue")
	require.NoError(t, err)
	require.True(t, ok)

	job, err := fetcher.DecodeParseJob(payload)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/final", job.URL)
}

// Scenario G — backpressure.
func TestBackpressureSleepsProportionallyBetweenSoftAndHard(t *testing.T) {
	t.Parallel()

	mem := storetest.New()
	ctx := context.Background()

	entries := make([]string, 150)
	for i := range entries {
		entries[i] = fmt.Sprintf("job-%d", i)
	}
	require.NoError(t, mem.ListPrepend(ctx, "fetch:queue", entries...))

	enforcer := politeness.New(mem, politeness.Config{PolitenessDelay: 0}, nil)
	mgr := frontier.New(0, 1, mem, enforcer, nil)
	require.NoError(t, mgr.Init(ctx, frontier.Config{BloomCapacity: 1000, BloomFPR: 0.01}))

	pool := fetcher.NewWorkerPool(mgr, mem, nil, fetcher.Config{
		WorkerCount:      1,
		SoftLimit:        100,
		HardLimit:        200,
		BackpressureBase: 50 * time.Millisecond,
	})

	start := time.Now()
	require.NoError(t, pool.ApplyBackpressure(ctx))
	elapsed := time.Since(start)

	// overflow_ratio = (150-100)/(200-100) = 0.5 -> ~25ms + jitter, well
	// under a second.
	assert.Less(t, elapsed, time.Second)
}

func TestBackpressureBlocksAboveHardLimitUntilDrained(t *testing.T) {
	t.Parallel()

	mem := storetest.New()
	ctx := context.Background()

	entries := make([]string, 201)
	for i := range entries {
		entries[i] = fmt.Sprintf("job-%d", i)
	}
	require.NoError(t, mem.ListPrepend(ctx, "fetch:queue", entries...))

	enforcer := politeness.New(mem, politeness.Config{PolitenessDelay: 0}, nil)
	mgr := frontier.New(0, 1, mem, enforcer, nil)
	require.NoError(t, mgr.Init(ctx, frontier.Config{BloomCapacity: 1000, BloomFPR: 0.01}))

	pool := fetcher.NewWorkerPool(mgr, mem, nil, fetcher.Config{
		WorkerCount:     1,
		SoftLimit:       100,
		HardLimit:       200,
		RecheckInterval: 10 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		_ = pool.ApplyBackpressure(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("backpressure returned before queue drained below soft limit")
	case <-time.After(30 * time.Millisecond):
	}

	for i := 0; i < 105; i++ {
		_, _, err := mem.ListPopTail(ctx, "fetch:queue")
		require.NoError(t, err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("backpressure did not unblock after queue drained")
	}
}
