package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/ariel-frischer/specrunner/internal/manifest"
)

// DefaultGracePeriod is spec.md §4.4/§5's SIGTERM-then-SIGKILL grace window.
const DefaultGracePeriod = 5 * time.Second

// CommandRunner executes one test's child process, grounded on the
// internal/dag/executor.go's CommandRunner interface (enables
// swapping in a mock for dispatcher tests without spawning real processes).
type CommandRunner interface {
	Run(ctx context.Context, node manifest.TestNode, gracePeriod time.Duration) (exitCode int, stdout, stderr []byte, kind ErrorKind, err error)
}

// ProcessRunner runs a node's executable via os/exec, honoring a per-test
// wallclock timeout (ctx deadline) and graceful SIGTERM→SIGKILL cancellation
// rather than os/exec's default immediate-kill-on-cancel behavior, since
// spec.md §4.4/§5 requires the grace period regardless of which deadline
// (timeout vs. shutdown) triggered cancellation.
type ProcessRunner struct{}

func (ProcessRunner) Run(ctx context.Context, node manifest.TestNode, gracePeriod time.Duration) (int, []byte, []byte, ErrorKind, error) {
	cmd := exec.Command(node.Executable, node.Args...)
	cmd.Env = envFromParameters(node.Parameters)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return -1, nil, nil, SpawnError, fmt.Errorf("starting %s: %w", node.Executable, err)
	}

	// waitDone is closed (not sent-once) when cmd.Wait() returns, so both
	// the main select and the grace-period goroutine below can observe it
	// without racing over who consumes a single buffered value.
	var waitErr error
	waitDone := make(chan struct{})
	go func() {
		waitErr = cmd.Wait()
		close(waitDone)
	}()

	var once sync.Once
	cancelled := false
	terminate := func() {
		once.Do(func() {
			cancelled = true
			_ = cmd.Process.Signal(syscall.SIGTERM)
			go func() {
				select {
				case <-time.After(gracePeriod):
					_ = cmd.Process.Kill()
				case <-waitDone:
				}
			}()
		})
	}

	select {
	case <-ctx.Done():
		terminate()
		<-waitDone
	case <-waitDone:
		if waitErr != nil {
			return classifyExit(waitErr, cancelled, stdout.Bytes(), stderr.Bytes())
		}
		return 0, stdout.Bytes(), stderr.Bytes(), NoError, nil
	}

	if cancelled {
		kind := Cancelled
		if ctx.Err() == context.DeadlineExceeded {
			kind = Timeout
		}
		return exitCodeOf(cmd), stdout.Bytes(), stderr.Bytes(), kind, ctx.Err()
	}
	return exitCodeOf(cmd), stdout.Bytes(), stderr.Bytes(), NoError, nil
}

func classifyExit(err error, cancelled bool, stdout, stderr []byte) (int, []byte, []byte, ErrorKind, error) {
	if exitErr, ok := err.(*exec.ExitError); ok {
		kind := NoError
		if exitErr.ExitCode() < 0 {
			kind = Crashed
		}
		if cancelled {
			kind = Cancelled
		}
		return exitErr.ExitCode(), stdout, stderr, kind, nil
	}
	return -1, stdout, stderr, SpawnError, err
}

func exitCodeOf(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

func envFromParameters(params map[string]string) []string {
	env := os.Environ()
	for k, v := range params {
		env = append(env, k+"="+v)
	}
	return env
}
