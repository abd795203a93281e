package background

import (
	"context"
	"testing"
	"time"
)

func waitForStatus(t *testing.T, m *Manager, id string, want Status) TaskInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, ok := m.Get(id)
		if !ok {
			t.Fatalf("task %s vanished", id)
		}
		if info.Status == want {
			return info
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", id, want)
	return TaskInfo{}
}

func TestStart_Completes(t *testing.T) {
	m := NewManager(1)
	id := m.Start("nix build .#default", func(ctx context.Context) (*int, error) {
		code := 0
		return &code, nil
	})

	info, ok := m.Get(id)
	if !ok {
		t.Fatal("task not registered immediately")
	}
	if info.Command != "nix build .#default" {
		t.Errorf("Command = %q", info.Command)
	}

	info = waitForStatus(t, m, id, Completed)
	if info.ExitCode == nil || *info.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", info.ExitCode)
	}
}

func TestStart_NonZeroExitFails(t *testing.T) {
	m := NewManager(1)
	id := m.Start("nix build .#broken", func(ctx context.Context) (*int, error) {
		code := 1
		return &code, nil
	})
	info := waitForStatus(t, m, id, Failed)
	if info.ExitCode == nil || *info.ExitCode != 1 {
		t.Errorf("ExitCode = %v, want 1", info.ExitCode)
	}
}

func TestStart_ErrorFails(t *testing.T) {
	m := NewManager(1)
	id := m.Start("nix build", func(ctx context.Context) (*int, error) {
		return nil, context.DeadlineExceeded
	})
	info := waitForStatus(t, m, id, Failed)
	if info.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil", info.ExitCode)
	}
}

func TestStart_ConcurrencyBound(t *testing.T) {
	m := NewManager(1)
	release := make(chan struct{})

	first := m.Start("first", func(ctx context.Context) (*int, error) {
		<-release
		code := 0
		return &code, nil
	})
	started := make(chan struct{})
	second := m.Start("second", func(ctx context.Context) (*int, error) {
		close(started)
		code := 0
		return &code, nil
	})

	// The second task queues behind the semaphore but is registered.
	select {
	case <-started:
		t.Fatal("second task ran while the first held the slot")
	case <-time.After(100 * time.Millisecond):
	}
	if _, ok := m.Get(second); !ok {
		t.Error("queued task not pollable")
	}

	close(release)
	waitForStatus(t, m, first, Completed)
	waitForStatus(t, m, second, Completed)
}

func TestShutdown_CancelsRunningTasks(t *testing.T) {
	m := NewManager(1)
	id := m.Start("nix build .#slow", func(ctx context.Context) (*int, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	m.Shutdown()
	info := waitForStatus(t, m, id, Failed)
	if info.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil", info.ExitCode)
	}
}

func TestList(t *testing.T) {
	m := NewManager(2)
	for range 3 {
		m.Start("nix build", func(ctx context.Context) (*int, error) {
			code := 0
			return &code, nil
		})
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		done := 0
		for _, info := range m.List() {
			if info.Status == Completed {
				done++
			}
		}
		if done == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("not all tasks completed")
}
