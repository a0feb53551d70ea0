package sidefx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is one post-commit side effect (cache invalidation, notification
// write, fan-out publish). Tasks run after durable state is already
// correct, so their failures are recorded and swallowed, never propagated
// to the request.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Runner struct {
	timeout time.Duration

	totalRun    atomic.Int64
	totalFailed atomic.Int64
	lastErrorMu sync.Mutex
	lastError   string
}

func New(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Runner{timeout: timeout}
}

// Dispatch runs the tasks in order, each under its own short timeout, so a
// degraded cache or messaging backend never slows the write path past the
// per-task budget. Order is significant: callers put cache invalidation
// ahead of fan-out.
func (r *Runner) Dispatch(ctx context.Context, tasks ...Task) {
	for _, t := range tasks {
		r.runOne(ctx, t)
	}
}

func (r *Runner) runOne(ctx context.Context, t Task) {
	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.totalRun.Add(1)
	if err := t.Run(tctx); err != nil {
		r.totalFailed.Add(1)
		r.lastErrorMu.Lock()
		r.lastError = t.Name + ": " + err.Error()
		r.lastErrorMu.Unlock()
		slog.Warn("side effect failed", "task", t.Name, "error", err.Error())
	}
}

type Stats struct {
	TotalRun    int64  `json:"totalRun"`
	TotalFailed int64  `json:"totalFailed"`
	LastError   string `json:"lastError,omitempty"`
}

func (r *Runner) Stats() Stats {
	st := Stats{
		TotalRun:    r.totalRun.Load(),
		TotalFailed: r.totalFailed.Load(),
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}
