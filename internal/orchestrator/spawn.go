package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
)

// role identifies which worker pool a spawned child process runs.
type role string

const (
	roleFetcher role = "fetcher"
	roleParser  role = "parser"
)

// childProcess is the handle orchestrator keeps on one spawned worker
// process: enough to wait for its exit and to force-terminate it.
type childProcess interface {
	// Wait blocks until the process exits and returns its error, if any.
	Wait() error
	// Kill force-terminates the process.
	Kill() error
	// String identifies the process for logging.
	String() string
}

// spawner starts a child process for one pod/role/worker-id triple. The
// real implementation re-execs the engine binary itself with `worker`
// flags; tests substitute a fake that never shells out.
type spawner interface {
	Spawn(ctx context.Context, r role, podID, workerID int) (childProcess, error)
}

// execSpawner spawns child worker processes by re-invoking the engine's own
// binary with `worker --role --pod --worker` flags, mirroring the
// orchestrator's process-per-fetcher-and-parser model from spec.md §5.
type execSpawner struct {
	binaryPath string
	extraArgs  []string
}

func newExecSpawner(binaryPath string, extraArgs []string) *execSpawner {
	return &execSpawner{binaryPath: binaryPath, extraArgs: extraArgs}
}

func (s *execSpawner) Spawn(ctx context.Context, r role, podID, workerID int) (childProcess, error) {
	args := append([]string{
		"worker",
		"--role", string(r),
		"--pod", strconv.Itoa(podID),
		"--worker", strconv.Itoa(workerID),
	}, s.extraArgs...)

	cmd := exec.CommandContext(ctx, s.binaryPath, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("orchestrator: spawn %s pod=%d worker=%d: %w", r, podID, workerID, err)
	}

	return &execChildProcess{cmd: cmd, role: r, podID: podID, workerID: workerID}, nil
}

type execChildProcess struct {
	cmd      *exec.Cmd
	role     role
	podID    int
	workerID int
}

func (p *execChildProcess) Wait() error { return p.cmd.Wait() }

func (p *execChildProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execChildProcess) String() string {
	return fmt.Sprintf("%s pod=%d worker=%d (pid %d)", p.role, p.podID, p.workerID, p.cmd.Process.Pid)
}
