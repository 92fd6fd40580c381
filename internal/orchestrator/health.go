package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/andrewkchan/podcrawl/internal/logger"
)

// trackedProcess pairs a spawned child with the channel closed once its
// single Wait() call returns — exec.Cmd.Wait may only be called once, so
// every other observer (waitAll, shutdown) watches this channel instead of
// calling Wait again.
type trackedProcess struct {
	proc childProcess
	done chan struct{}
}

// healthMonitor tracks every spawned child process and counts exits. Per
// spec.md §4.7 it never restarts a dead child — restarts would require
// re-sharding that is explicitly out of scope — it only observes and logs.
type healthMonitor struct {
	log logger.Interface

	mu           sync.Mutex
	processes    []*trackedProcess
	deadCount    atomic.Int64
	unexpectedly atomic.Int64 // exits observed before shutdown was requested
}

func newHealthMonitor(log logger.Interface) *healthMonitor {
	return &healthMonitor{log: log}
}

// track registers a spawned process and starts a goroutine that waits for
// its exit, logging and counting it. shuttingDown reports whether the
// engine has already begun a deliberate shutdown, to distinguish "expected"
// exits (part of the drain) from unexpected crashes.
func (h *healthMonitor) track(proc childProcess, shuttingDown func() bool) {
	tp := &trackedProcess{proc: proc, done: make(chan struct{})}

	h.mu.Lock()
	h.processes = append(h.processes, tp)
	h.mu.Unlock()

	go func() {
		err := proc.Wait()
		close(tp.done)
		h.deadCount.Add(1)

		if shuttingDown() {
			h.log.Info("worker process exited during shutdown", "process", proc.String())
			return
		}

		h.unexpectedly.Add(1)
		if err != nil {
			h.log.Error("worker process exited unexpectedly", "process", proc.String(), "error", err.Error())
		} else {
			h.log.Warn("worker process exited unexpectedly", "process", proc.String())
		}
	}()
}

// DeadCount returns the total number of processes observed to have exited
// so far, expected or not.
func (h *healthMonitor) DeadCount() int64 { return h.deadCount.Load() }

// UnexpectedCount returns the number of exits observed before shutdown was
// requested — lost capacity the orchestrator notes but does not recover.
func (h *healthMonitor) UnexpectedCount() int64 { return h.unexpectedly.Load() }

// killAll force-terminates every tracked process still alive. Used by the
// hard-timeout path of shutdown.
func (h *healthMonitor) killAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, tp := range h.processes {
		select {
		case <-tp.done:
			continue // already exited
		default:
		}
		if err := tp.proc.Kill(); err != nil {
			h.log.Warn("failed to kill worker process", "process", tp.proc.String(), "error", err.Error())
		}
	}
}

// waitAll blocks, via an errgroup, until every tracked process's done
// channel closes or ctx is cancelled.
func (h *healthMonitor) waitAll(ctx context.Context) error {
	h.mu.Lock()
	procs := make([]*trackedProcess, len(h.processes))
	copy(procs, h.processes)
	h.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, tp := range procs {
		tp := tp
		g.Go(func() error {
			select {
			case <-tp.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	return g.Wait()
}
