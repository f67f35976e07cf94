package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/user/chatverse/internal/metrics"
	"github.com/user/chatverse/internal/types"
)

// toucher is implemented by session stores that track per-session activity.
type toucher interface {
	Touch(id types.SessionID, runID types.RunID)
}

// Gateway turns session work into runs and queues them so that a session
// never runs two pieces of work at once.
type Gateway struct {
	sessions types.SessionStore
	metrics  *metrics.Metrics
	Queue    *Queue

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway wired to the session store with the given
// concurrency limit for simultaneous runs. m may be nil.
func New(sessions types.SessionStore, maxConcurrent int64, m *metrics.Metrics) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Gateway{
		sessions: sessions,
		metrics:  m,
		Queue:    NewQueue(maxConcurrent),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context and stops the queue, waiting for
// in-flight runs to return.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked once the run has finished.
func WithOnComplete(fn func(error)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// Submit queues work for an existing session.
func (g *Gateway) Submit(ctx context.Context, sessionID types.SessionID, name string, work Work, opts ...RunOption) (*Run, error) {
	if _, err := g.sessions.Get(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	run := NewRun(sessionID, name, work)
	for _, opt := range opts {
		opt(run)
	}

	inner := run.Work
	run.Work = func(ctx context.Context) error {
		g.metrics.RunStarted()
		start := time.Now()
		var err error
		if inner != nil {
			err = inner(ctx)
		}
		g.metrics.RunFinished(time.Since(start), err)
		if t, ok := g.sessions.(toucher); ok {
			t.Touch(run.SessionID, run.ID)
		}
		return err
	}

	if err := g.Queue.Enqueue(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Busy reports whether the session has work queued or running.
func (g *Gateway) Busy(sessionID types.SessionID) bool {
	return g.Queue.Pending(sessionID) > 0
}
