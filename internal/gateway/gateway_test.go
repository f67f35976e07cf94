package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/chatverse/internal/metrics"
	"github.com/user/chatverse/internal/state"
	"github.com/user/chatverse/internal/types"
)

func TestGatewaySubmit(t *testing.T) {
	sessions := state.NewSessionStore[struct{}](nil)
	ctx := context.Background()
	id, err := sessions.ResolveOrCreate(ctx, types.NewSessionKey("web", "1"))
	if err != nil {
		t.Fatal(err)
	}

	gw := New(sessions, 2, metrics.New("test"))
	gw.Start(ctx)
	defer gw.Stop()

	done := make(chan error, 1)
	run, err := gw.Submit(ctx, id, "group", func(context.Context) error {
		return nil
	}, WithOnComplete(func(err error) { done <- err }))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run")
	}

	idx, err := sessions.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if idx.LastRunID != run.ID {
		t.Errorf("expected last run %s, got %s", run.ID, idx.LastRunID)
	}
}

func TestGatewayUnknownSession(t *testing.T) {
	sessions := state.NewSessionStore[struct{}](nil)
	gw := New(sessions, 1, nil)
	gw.Start(context.Background())
	defer gw.Stop()

	_, err := gw.Submit(context.Background(), "missing", "group", nil)
	if !errors.Is(err, state.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGatewayBusy(t *testing.T) {
	sessions := state.NewSessionStore[struct{}](nil)
	ctx := context.Background()
	id, _ := sessions.ResolveOrCreate(ctx, types.NewSessionKey("web", "busy"))

	gw := New(sessions, 1, nil)
	gw.Start(ctx)
	defer gw.Stop()

	release := make(chan struct{})
	done := make(chan struct{})
	_, err := gw.Submit(ctx, id, "group", func(context.Context) error {
		<-release
		return nil
	}, WithOnComplete(func(error) { close(done) }))
	if err != nil {
		t.Fatal(err)
	}

	if !gw.Busy(id) {
		t.Error("expected session to be busy")
	}
	close(release)
	<-done
	if gw.Busy(id) {
		t.Error("expected session to be idle")
	}
}

func TestGatewayStopCancelsWork(t *testing.T) {
	sessions := state.NewSessionStore[struct{}](nil)
	ctx := context.Background()
	id, _ := sessions.ResolveOrCreate(ctx, types.NewSessionKey("web", "stop"))

	gw := New(sessions, 1, nil)
	gw.Start(ctx)

	started := make(chan struct{})
	result := make(chan error, 1)
	_, err := gw.Submit(ctx, id, "group", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, WithOnComplete(func(err error) { result <- err }))
	if err != nil {
		t.Fatal(err)
	}

	<-started
	gw.Stop()

	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGatewayWorkSeesItsRun(t *testing.T) {
	sessions := state.NewSessionStore[struct{}](nil)
	ctx := context.Background()
	id, _ := sessions.ResolveOrCreate(ctx, "ctx")

	gw := New(sessions, 1, nil)
	gw.Start(ctx)
	defer gw.Stop()

	seen := make(chan types.RunID, 1)
	run, err := gw.Submit(ctx, id, "group", func(ctx context.Context) error {
		r, ok := RunFromContext(ctx)
		if !ok {
			seen <- ""
			return nil
		}
		seen <- r.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-seen:
		if got != run.ID {
			t.Errorf("expected run %s in context, got %q", run.ID, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run")
	}
}
