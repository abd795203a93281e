package runner

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func newTestRunner() *Runner {
	return &Runner{Timeout: 10 * time.Second}
}

func TestRun_Success(t *testing.T) {
	r := newTestRunner()
	out, err := r.Run(context.Background(), Command{Program: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Succeeded {
		t.Error("Succeeded = false, want true")
	}
	if out.ExitCode == nil || *out.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", out.ExitCode)
	}
	if !strings.Contains(out.Stdout, "hello") {
		t.Errorf("Stdout = %q, want to contain 'hello'", out.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := newTestRunner()
	out, err := r.Run(context.Background(), Command{Program: "false"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Succeeded {
		t.Error("Succeeded = true, want false")
	}
	if out.ExitCode == nil || *out.ExitCode != 1 {
		t.Errorf("ExitCode = %v, want 1", out.ExitCode)
	}
	if out.Reason != "" {
		t.Errorf("Reason = %q, want empty for a normal non-zero exit", out.Reason)
	}
}

func TestRun_SpawnFailed(t *testing.T) {
	r := newTestRunner()
	_, err := r.Run(context.Background(), Command{Program: "nonexistent-binary-xyz-123"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if rerr.Reason != SpawnFailed {
		t.Errorf("Reason = %s, want SpawnFailed", rerr.Reason)
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
}

func TestRun_EmptyProgram(t *testing.T) {
	r := newTestRunner()
	_, err := r.Run(context.Background(), Command{})
	if err == nil {
		t.Fatal("expected error for empty program")
	}
}

func TestRun_Dir(t *testing.T) {
	r := newTestRunner()
	dir := t.TempDir()
	out, err := r.Run(context.Background(), Command{Program: "pwd", Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Stdout, dir) {
		t.Errorf("Stdout = %q, want to contain %q", out.Stdout, dir)
	}
}

func TestRun_EnvOverride(t *testing.T) {
	r := newTestRunner()
	out, err := r.Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "printf %s \"$CHIX_TEST_VAR\""},
		Env:     []string{"CHIX_TEST_VAR=override-value"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Stdout != "override-value" {
		t.Errorf("Stdout = %q, want the injected value", out.Stdout)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := &Runner{Timeout: 100 * time.Millisecond}
	start := time.Now()
	out, err := r.Run(context.Background(), Command{Program: "sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, kill did not fire promptly", elapsed)
	}
	if out.Succeeded {
		t.Error("Succeeded = true, want false")
	}
	if out.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil on timeout", *out.ExitCode)
	}
	if out.Reason != Timeout {
		t.Errorf("Reason = %q, want Timeout", out.Reason)
	}
}

func TestRun_TimeoutKillsDescendants(t *testing.T) {
	r := &Runner{Timeout: 200 * time.Millisecond}

	// The shell spawns a grandchild that prints its own pid and sleeps.
	out, err := r.Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "sh -c 'echo $$; sleep 30' & echo $!; wait"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Reason != Timeout {
		t.Fatalf("Reason = %q, want Timeout", out.Reason)
	}

	// Give the kernel a moment to reap, then confirm nothing survived.
	time.Sleep(100 * time.Millisecond)
	for line := range strings.SplitSeq(strings.TrimSpace(out.Stdout), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid <= 0 {
			continue
		}
		if syscall.Kill(pid, 0) == nil {
			t.Errorf("process %d is still alive after timeout", pid)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	r := newTestRunner()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	out, err := r.Run(ctx, Command{Program: "sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Succeeded {
		t.Error("Succeeded = true, want false")
	}
	if out.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil on cancellation", *out.ExitCode)
	}
	if out.Reason != Cancelled {
		t.Errorf("Reason = %q, want Cancelled", out.Reason)
	}
}

func TestRun_PartialOutputOnTimeout(t *testing.T) {
	r := &Runner{Timeout: 300 * time.Millisecond}
	out, err := r.Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "echo before; sleep 10; echo after"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.Stdout, "before") {
		t.Errorf("Stdout = %q, want output captured before the deadline", out.Stdout)
	}
	if strings.Contains(out.Stdout, "after") {
		t.Errorf("Stdout = %q, contains output that should never have run", out.Stdout)
	}
}

func TestRun_CaptureCap(t *testing.T) {
	r := &Runner{Timeout: 10 * time.Second, MaxCapture: 100}
	out, err := r.Run(context.Background(), Command{
		Program: "sh",
		Args:    []string{"-c", "dd if=/dev/zero bs=200 count=1 2>/dev/null"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Stdout) > 100 {
		t.Errorf("len(Stdout) = %d, want <= 100", len(out.Stdout))
	}
}

func TestCommand_Display(t *testing.T) {
	c := Command{Program: "nix", Args: []string{"build", ".#default"}}
	if got := c.Display(); got != "nix build .#default" {
		t.Errorf("Display() = %q", got)
	}
	if got := (Command{Program: "nix"}).Display(); got != "nix" {
		t.Errorf("Display() = %q", got)
	}
}
