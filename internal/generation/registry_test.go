package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/slidegen/internal/slidestream"
)

func TestGeneration_ObserverCounts(t *testing.T) {
	reg := NewRegistry(1, time.Hour)
	g, ctx, err := reg.Begin(context.Background(), "volcanoes", "completion")
	if err != nil {
		t.Fatal(err)
	}

	src := slidestream.NewSliceSource(`[{"title":"ab"},{bad},{"question":"c?"}]`)
	sink := slidestream.SinkFunc(func(context.Context, slidestream.Event) error { return nil })
	_, runErr := slidestream.Run(ctx, src, sink, slidestream.Options{Observer: g})
	reg.Finish(g, runErr)

	snap := g.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, snap.Status)
	}
	if snap.SlidesCreated != 2 {
		t.Errorf("expected 2 slides, got %d", snap.SlidesCreated)
	}
	if snap.MalformedObjects != 1 {
		t.Errorf("expected 1 malformed object, got %d", snap.MalformedObjects)
	}
	if snap.CharacterEvents != 4 {
		t.Errorf("expected 4 character events, got %d", snap.CharacterEvents)
	}
	if snap.Error != "" {
		t.Errorf("expected no error, got %q", snap.Error)
	}
}

func TestGeneration_StreamFinishedOutcomes(t *testing.T) {
	tests := []struct {
		outcome slidestream.Outcome
		want    Status
	}{
		{slidestream.OutcomeCompleted, StatusCompleted},
		{slidestream.OutcomeFailed, StatusFailed},
		{slidestream.OutcomeCancelled, StatusCancelled},
	}
	for _, tt := range tests {
		g := &Generation{Status: StatusStreaming}
		g.StreamFinished(tt.outcome, 0, 0)
		if g.Status != tt.want {
			t.Errorf("outcome %q: expected status %q, got %q", tt.outcome, tt.want, g.Status)
		}
	}
}

func TestRegistry_BeginAssignsUniqueIDs(t *testing.T) {
	reg := NewRegistry(10, time.Hour)
	seen := map[string]bool{}
	for range 5 {
		g, _, err := reg.Begin(context.Background(), "t", "completion")
		if err != nil {
			t.Fatal(err)
		}
		if g.ID == "" || seen[g.ID] {
			t.Fatalf("expected fresh id, got %q", g.ID)
		}
		seen[g.ID] = true
		if reg.Get(g.ID) != g {
			t.Errorf("expected registry to return generation %q", g.ID)
		}
	}
	if reg.Active() != 5 {
		t.Errorf("expected 5 active, got %d", reg.Active())
	}
}

func TestRegistry_Capacity(t *testing.T) {
	reg := NewRegistry(2, time.Hour)
	a, _, _ := reg.Begin(context.Background(), "a", "completion")
	if _, _, err := reg.Begin(context.Background(), "b", "completion"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := reg.Begin(context.Background(), "c", "completion"); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}

	reg.Finish(a, nil)
	reg.Finish(a, nil)
	if reg.Active() != 1 {
		t.Fatalf("expected 1 active after finish, got %d", reg.Active())
	}
	if _, _, err := reg.Begin(context.Background(), "c", "completion"); err != nil {
		t.Fatalf("expected slot to be released, got %v", err)
	}
}

func TestRegistry_Cancel(t *testing.T) {
	reg := NewRegistry(1, time.Hour)
	g, ctx, _ := reg.Begin(context.Background(), "t", "completion")

	if err := reg.Cancel(g.ID); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected generation context to be cancelled")
	}

	reg.Finish(g, ctx.Err())
	if err := reg.Cancel(g.ID); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
	if err := reg.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if g.Snapshot().Status != StatusFailed {
		t.Errorf("expected failed status without stream outcome, got %q", g.Snapshot().Status)
	}
}

func TestRegistry_FinishRecordsError(t *testing.T) {
	reg := NewRegistry(1, time.Hour)
	g, _, _ := reg.Begin(context.Background(), "t", "completion")
	reg.Finish(g, errors.New("completion api status 529"))

	snap := g.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if snap.Error != "completion api status 529" {
		t.Errorf("unexpected error %q", snap.Error)
	}
}

func TestRegistry_TTLCleanup(t *testing.T) {
	reg := NewRegistry(5, 50*time.Millisecond)

	old, _, _ := reg.Begin(context.Background(), "old", "completion")
	reg.Finish(old, nil)
	streaming, _, _ := reg.Begin(context.Background(), "streaming", "completion")

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh, _, _ := reg.Begin(context.Background(), "fresh", "completion")
	reg.Finish(fresh, nil)

	reg.Cleanup()

	if reg.Get(old.ID) != nil {
		t.Error("expected expired generation to be cleaned up")
	}
	if reg.Get(streaming.ID) == nil {
		t.Error("expected streaming generation to survive cleanup")
	}
	if reg.Get(fresh.ID) == nil {
		t.Error("expected fresh generation to survive cleanup")
	}
}

func TestRegistry_StopCancelsStreams(t *testing.T) {
	reg := NewRegistry(2, time.Hour)
	reg.Start(context.Background(), time.Hour)
	_, ctx, _ := reg.Begin(context.Background(), "t", "completion")

	reg.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Stop to cancel streaming generations")
	}

	if _, _, err := reg.Begin(context.Background(), "late", "completion"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Stop, got %v", err)
	}
}
