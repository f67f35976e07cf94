package gateway

import (
	"context"
	"time"

	"github.com/user/chatverse/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Work is the body of a run. The context is cancelled when the gateway stops.
type Work func(ctx context.Context) error

// Run tracks a single piece of queued work against a session.
type Run struct {
	ID         types.RunID
	SessionID  types.SessionID
	Name       string
	Work       Work
	Status     RunStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Error      error
	OnComplete func(err error)
}

// NewRun creates a Run in the Queued state for the given session.
func NewRun(sessionID types.SessionID, name string, work Work) *Run {
	return &Run{
		ID:        types.NewRunID(),
		SessionID: sessionID,
		Name:      name,
		Work:      work,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Duration reports how long the run took, or zero if it has not ended.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(*r.StartedAt)
}

type runKey struct{}

func withRun(ctx context.Context, run *Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}

// RunFromContext returns the run whose work was handed ctx.
func RunFromContext(ctx context.Context) (*Run, bool) {
	run, ok := ctx.Value(runKey{}).(*Run)
	return run, ok
}
