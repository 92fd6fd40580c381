package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/store"
	"github.com/andrewkchan/podcrawl/internal/store/storetest"
)

// memoryFactory hands out one *storetest.Memory per distinct storeURL,
// reused across calls, standing in for a real per-pod Redis connection.
func memoryFactory() store.Factory {
	mu := sync.Mutex{}
	clients := make(map[string]*storetest.Memory)

	return func(storeURL string) (store.Client, error) {
		mu.Lock()
		defer mu.Unlock()

		if c, ok := clients[storeURL]; ok {
			return c, nil
		}
		c := storetest.New()
		clients[storeURL] = c
		return c, nil
	}
}

type fakeChildProcess struct {
	done chan struct{}
}

func (f *fakeChildProcess) Wait() error {
	<-f.done
	return nil
}

func (f *fakeChildProcess) Kill() error {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	return nil
}

func (f *fakeChildProcess) String() string { return "fake-child" }

// fakeSpawner never shells out; every spawned process exits as soon as the
// run context is cancelled, simulating a cooperative worker process.
type fakeSpawner struct {
	mu      sync.Mutex
	spawned int
}

func (s *fakeSpawner) Spawn(ctx context.Context, _ role, _, _ int) (childProcess, error) {
	s.mu.Lock()
	s.spawned++
	s.mu.Unlock()

	proc := &fakeChildProcess{done: make(chan struct{})}
	go func() {
		<-ctx.Done()
		_ = proc.Kill()
	}()

	return proc, nil
}

func testConfig(podCount int) Config {
	storeURLs := make([]string, podCount)
	for i := range storeURLs {
		storeURLs[i] = "mem://pod" + string(rune('0'+i))
	}

	return Config{
		PodStoreURLs:             storeURLs,
		DataDirs:                 []string{"/tmp/podcrawl-test"},
		FetchersPerPod:           1,
		ParsersPerPod:            1,
		GlobalEmptyCheckInterval: 5 * time.Millisecond,
		GlobalEmptyGracePeriod:   10 * time.Millisecond,
		ShutdownTimeout:          500 * time.Millisecond,
		UserAgentTemplate:        "podcrawl/1.0 (+mailto:{email})",
		Email:                    "ops@example.com",
	}
}

func TestInitWritesPodInfoAndSchemaVersion(t *testing.T) {
	t.Parallel()

	cfg := testConfig(2)
	o := New(cfg, memoryFactory(), logger.NewNoOp(), &fakeSpawner{})

	ctx := context.Background()
	require.NoError(t, o.Init(ctx, nil))

	for _, pod := range o.pods {
		fields, err := pod.client.HashGetAll(ctx, keyPodInfo)
		require.NoError(t, err)
		assert.NotEmpty(t, fields[fieldRunID])
		assert.NotEmpty(t, fields[fieldInitializedAt])

		version, ok, err := pod.client.Get(ctx, keySchemaVersion)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1", string(version))
	}
}

func TestInitLoadsSeedsIntoOwningPod(t *testing.T) {
	t.Parallel()

	cfg := testConfig(1)
	o := New(cfg, memoryFactory(), logger.NewNoOp(), &fakeSpawner{})

	ctx := context.Background()
	require.NoError(t, o.Init(ctx, []string{"https://example.com/a"}))

	entry, err := o.pods[0].manager.GetNextURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "https://example.com/a", entry.URL)
}

func TestRunShutsDownOnSustainedEmptyFrontier(t *testing.T) {
	t.Parallel()

	cfg := testConfig(1)
	sp := &fakeSpawner{}
	o := New(cfg, memoryFactory(), logger.NewNoOp(), sp)

	ctx := context.Background()
	// Empty seed list: frontier stays empty for the whole run, matching
	// spec.md's empty-seed-file boundary case.
	require.NoError(t, o.Init(ctx, nil))

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not shut down after sustained empty frontier")
	}

	assert.Positive(t, sp.spawned)
}

func TestHealthMonitorCountsUnexpectedExit(t *testing.T) {
	t.Parallel()

	log := logger.NewNoOp()
	hm := newHealthMonitor(log)

	proc := &fakeChildProcess{done: make(chan struct{})}
	hm.track(proc, func() bool { return false })

	close(proc.done)

	require.Eventually(t, func() bool { return hm.DeadCount() == 1 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, hm.UnexpectedCount())
}

func TestHealthMonitorDoesNotCountShutdownExitsAsUnexpected(t *testing.T) {
	t.Parallel()

	log := logger.NewNoOp()
	hm := newHealthMonitor(log)

	shuttingDown := false
	proc := &fakeChildProcess{done: make(chan struct{})}
	hm.track(proc, func() bool { return shuttingDown })

	shuttingDown = true
	close(proc.done)

	require.Eventually(t, func() bool { return hm.DeadCount() == 1 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 0, hm.UnexpectedCount())
}
