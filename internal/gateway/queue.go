package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/chatverse/internal/types"
)

var ErrQueueFull = errors.New("queue full")

const laneBuffer = 16

// Queue manages per-session lanes with a global concurrency semaphore.
// Each session gets its own FIFO channel (lane) so that runs within a
// session are processed sequentially, while the semaphore limits the
// total number of concurrent run processors across all sessions.
type Queue struct {
	lanes     map[types.SessionID]chan *Run
	pending   map[types.SessionID]int
	semaphore *semaphore.Weighted
	processor func(context.Context, *Run) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously across all session lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes:     make(map[types.SessionID]chan *Run),
		pending:   make(map[types.SessionID]int),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		processor: runWork,
	}
}

func runWork(ctx context.Context, run *Run) error {
	if run.Work == nil {
		return nil
	}
	return run.Work(ctx)
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to the session's lane, creating the lane (and its
// goroutine) on first use.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil {
		return fmt.Errorf("enqueue run %s: queue not started", run.ID)
	}
	if q.ctx.Err() != nil {
		return fmt.Errorf("enqueue run %s: %w", run.ID, q.ctx.Err())
	}

	lane, exists := q.lanes[run.SessionID]
	if !exists {
		lane = make(chan *Run, laneBuffer)
		q.lanes[run.SessionID] = lane
		q.wg.Add(1)
		go q.processLane(run.SessionID, lane)
	}

	select {
	case lane <- run:
		q.pending[run.SessionID]++
		return nil
	default:
		return fmt.Errorf("session %s: %w", run.SessionID, ErrQueueFull)
	}
}

// Pending reports how many runs of a session are queued or running.
func (q *Queue) Pending(sessionID types.SessionID) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pending[sessionID]
}

// processLane drains a single session lane, acquiring a semaphore slot
// before running the processor synchronously. This ensures strict FIFO
// ordering within a session while the semaphore limits cross-session
// parallelism.
func (q *Queue) processLane(sessionID types.SessionID, lane chan *Run) {
	defer q.wg.Done()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				q.finish(run, err)
				return
			}
			q.active.Add(1)
			q.execute(run)
			q.active.Add(-1)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) execute(run *Run) {
	started := time.Now()
	run.StartedAt = &started
	run.Status = RunStatusRunning

	err := q.processor(withRun(q.ctx, run), run)
	if err != nil {
		slog.Error("run failed", "run_id", string(run.ID), "session_id", string(run.SessionID), "name", run.Name, "error", err)
	} else {
		slog.Debug("run complete", "run_id", string(run.ID), "session_id", string(run.SessionID), "name", run.Name)
	}
	q.finish(run, err)
}

func (q *Queue) finish(run *Run, err error) {
	ended := time.Now()
	run.EndedAt = &ended
	run.Error = err
	if err != nil {
		run.Status = RunStatusFailed
	} else {
		run.Status = RunStatusComplete
	}

	q.mu.Lock()
	if q.pending[run.SessionID]--; q.pending[run.SessionID] <= 0 {
		delete(q.pending, run.SessionID)
	}
	q.mu.Unlock()

	if run.OnComplete != nil {
		run.OnComplete(err)
	}
}

// WaitIdle blocks until no runs are actively being processed, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor replaces the function invoked for each dequeued Run. The
// default calls Run.Work.
func (q *Queue) SetProcessor(fn func(context.Context, *Run) error) {
	q.processor = fn
}
