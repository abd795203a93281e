// Package runner executes external commands directly — never through a
// shell — with bounded lifetime and fully captured output. Every exit
// path (normal, timeout, cancellation) releases the child process and
// its descendants; no invocation may leak a running process.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Default limits applied when the Runner's fields are zero.
const (
	DefaultTimeout    = 300 * time.Second
	DefaultMaxCapture = 4 << 20 // bytes per stream
)

// Reason is a stable identifier for an execution failure, distinguishing
// "the program never finished" from an ordinary non-zero exit.
type Reason string

const (
	SpawnFailed Reason = "SpawnFailed"
	Timeout     Reason = "Timeout"
	Cancelled   Reason = "Cancelled"
)

// Error reports that a program could not be started.
type Error struct {
	Reason  Reason
	Program string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: executing %s: %v", e.Reason, e.Program, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Command specifies one subprocess invocation. It is immutable once
// constructed and consumed exactly once.
type Command struct {
	Program string
	Args    []string
	Dir     string   // working directory; empty means inherit
	Env     []string // KEY=VALUE overrides appended to the inherited environment
}

// Display renders the command for result records and logs.
func (c Command) Display() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Runner executes commands with a wall-clock deadline and capped
// capture buffers. It carries no per-invocation state; a single Runner
// is safe for concurrent use.
type Runner struct {
	Timeout    time.Duration // zero means DefaultTimeout, never unbounded
	MaxCapture int           // raw capture cap per stream; zero means DefaultMaxCapture
}

// Run executes spec and waits for completion or deadline.
//
// On normal exit the outcome carries the exit code and Succeeded
// reflects code zero. On timeout or caller cancellation the process
// group is killed, partial output is preserved, ExitCode is nil and
// Reason records which deadline fired. A spawn failure (program not
// found, permission denied) returns an *Error with Reason SpawnFailed;
// no process existed, so there is nothing to clean up.
func (r *Runner) Run(ctx context.Context, spec Command) (*Outcome, error) {
	if spec.Program == "" {
		return nil, &Error{Reason: SpawnFailed, Err: errors.New("empty program")}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxCapture := r.MaxCapture
	if maxCapture <= 0 {
		maxCapture = DefaultMaxCapture
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	// Place the child in its own process group and kill the whole group
	// on cancellation, so descendants never outlive the invocation.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitWriter{buf: &stdout, limit: maxCapture}
	cmd.Stderr = &limitWriter{buf: &stderr, limit: maxCapture}

	if err := cmd.Start(); err != nil {
		return nil, &Error{Reason: SpawnFailed, Program: spec.Program, Err: err}
	}

	waitErr := cmd.Wait()

	out := &Outcome{
		Command: spec.Display(),
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if waitErr == nil {
		code := 0
		out.ExitCode = &code
		out.Succeeded = true
		return out, nil
	}

	switch {
	case ctx.Err() != nil:
		// The caller's context fired, not our deadline.
		out.Reason = Cancelled
	case runCtx.Err() != nil:
		out.Reason = Timeout
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			out.ExitCode = &code
		} else {
			return nil, &Error{Reason: SpawnFailed, Program: spec.Program, Err: waitErr}
		}
	}
	return out, nil
}

// limitWriter writes up to limit bytes to buf, then silently discards
// the rest. It always reports the full write as consumed to avoid
// short-write errors from io.Copy.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
