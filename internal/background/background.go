// Package background tracks long-running builds that outlive the MCP
// request that started them. Callers get a task ID immediately and poll
// for status.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"
)

// Status of a background task.
type Status string

const (
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// DefaultMaxConcurrent bounds how many background builds run at once.
// Further tasks queue behind the semaphore but are registered (and
// pollable) immediately.
const DefaultMaxConcurrent = 2

// TaskInfo is a point-in-time snapshot of one task.
type TaskInfo struct {
	ID          string `json:"id"`
	Command     string `json:"command"`
	Status      Status `json:"status"`
	ElapsedSecs int64  `json:"elapsed_secs"`
	ExitCode    *int   `json:"exit_code"`
}

type task struct {
	mu        sync.Mutex
	id        string
	command   string
	status    Status
	startedAt time.Time
	exitCode  *int
}

func (t *task) snapshot() TaskInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TaskInfo{
		ID:          t.id,
		Command:     t.command,
		Status:      t.status,
		ElapsedSecs: int64(time.Since(t.startedAt).Seconds()),
		ExitCode:    t.exitCode,
	}
}

// Manager owns the task registry and the concurrency bound.
type Manager struct {
	tasks  *xsync.MapOf[string, *task]
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a Manager allowing maxConcurrent simultaneous
// tasks; zero or negative means DefaultMaxConcurrent.
func NewManager(maxConcurrent int64) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		tasks:  xsync.NewMapOf[string, *task](),
		sem:    semaphore.NewWeighted(maxConcurrent),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Shutdown cancels the manager's root context, which propagates to
// every running task's process. Queued tasks fail without starting.
func (m *Manager) Shutdown() {
	m.cancel()
}

// Start registers a task and runs fn on its own goroutine, returning
// the task ID without waiting. fn reports the process exit code; the
// task fails when fn errors or the code is missing or non-zero.
//
// The task runs under the manager's root context, not the caller's
// request context: outliving the request is the point. Shutdown
// cancels it.
func (m *Manager) Start(command string, fn func(ctx context.Context) (*int, error)) string {
	t := &task{
		id:        uuid.NewString(),
		command:   command,
		status:    Running,
		startedAt: time.Now(),
	}
	m.tasks.Store(t.id, t)

	go func() {
		if err := m.sem.Acquire(m.ctx, 1); err != nil {
			m.finish(t, nil, err)
			return
		}
		defer m.sem.Release(1)

		code, err := fn(m.ctx)
		m.finish(t, code, err)
	}()

	return t.id
}

func (m *Manager) finish(t *task, code *int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exitCode = code
	if err != nil || code == nil || *code != 0 {
		t.status = Failed
	} else {
		t.status = Completed
	}
}

// Get returns a snapshot of one task.
func (m *Manager) Get(id string) (TaskInfo, bool) {
	t, ok := m.tasks.Load(id)
	if !ok {
		return TaskInfo{}, false
	}
	return t.snapshot(), true
}

// List returns snapshots of all known tasks.
func (m *Manager) List() []TaskInfo {
	var out []TaskInfo
	m.tasks.Range(func(_ string, t *task) bool {
		out = append(out, t.snapshot())
		return true
	})
	return out
}
