package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"datachat-backend/internal/shared/telemetry"
)

var (
	// ErrQueueFull is returned by Submit when the task queue is saturated.
	ErrQueueFull = errors.New("job queue is full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("job runner is closed")
)

// Task is a unit of background work bound to a job ID. A non-nil return
// marks the job failed; success paths must write their own terminal state.
type Task func(ctx context.Context) error

type queuedTask struct {
	jobID string
	fn    Task
}

// Runner executes background tasks on a fixed worker pool. Every accepted
// task terminates in a Store write: returned errors and panics both end in
// SetError, so no job is ever left dangling in a non-terminal state.
type Runner struct {
	store   *Store
	tasks   chan queuedTask
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closeMu sync.Mutex
	closed  bool
}

// NewRunner constructs a Runner with the given worker count and queue size.
func NewRunner(store *Store, workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		store:  store,
		tasks:  make(chan queuedTask, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit enqueues a task for the given job without blocking. When the queue
// is full the caller gets ErrQueueFull and should surface it synchronously
// rather than let the job hang in pending forever.
func (r *Runner) Submit(jobID string, fn Task) error {
	// The send happens under closeMu so it cannot race close(r.tasks).
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.tasks <- queuedTask{jobID: jobID, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (r *Runner) Close() {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.closeMu.Unlock()

	r.wg.Wait()
	r.cancel()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for task := range r.tasks {
		r.run(task)
	}
}

func (r *Runner) run(task queuedTask) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("job.panic", map[string]any{
				"job_id": task.jobID,
				"error":  fmt.Sprintf("%v", rec),
				"stack":  string(debug.Stack()),
			})
			r.store.SetError(task.jobID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := task.fn(r.ctx); err != nil {
		r.store.SetError(task.jobID, err.Error())
	}
}
