// Package engine runs ffmpeg and ffprobe as child processes and bounds how
// many of them may run at once.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	// ErrEngineSpawn means the binary could not be started at all.
	ErrEngineSpawn = errors.New("engine could not be started")

	// ErrTimeout means the process outlived its per-invocation deadline and
	// was killed.
	ErrTimeout = errors.New("engine invocation timed out")
)

// DefaultTimeout bounds a single invocation, measured from process start.
const DefaultTimeout = 2 * time.Minute

// Invocation describes one out-of-process engine call.
type Invocation struct {
	Binary string   // ffmpeg or ffprobe path
	Args   []string // arguments, without the binary
	Label  string   // short name used in logs, e.g. "loudness" or "band Mid"
}

// Output is what the process wrote. ffmpeg diagnostics arrive on Stderr,
// ffprobe JSON on Stdout.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes an Invocation and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner runs invocations with os/exec.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns an ExecRunner; timeout <= 0 selects DefaultTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

// Run starts the process, captures both streams in full and waits for exit.
// Cancelling ctx kills the child. A non-zero exit is returned as an error
// together with whatever output was captured.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Binary, inv.Args...)
	cmd.WaitDelay = 5 * time.Second
	configureProcess(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("%w: %s: %v", ErrEngineSpawn, inv.Binary, err)
	}

	err := cmd.Wait()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	// The parent context wins: a cancelled request is not a timeout.
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%w after %s (%s)", ErrTimeout, timeout, inv.Label)
	}
	return out, fmt.Errorf("%s exited: %w", inv.Binary, err)
}
