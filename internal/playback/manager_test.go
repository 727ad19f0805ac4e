package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"watchsource/internal/domain"
)

type fakeEngine struct {
	live      *atomic.Int32
	attachErr error
	reloads   int
	recovers  int
	closed    bool
}

func (e *fakeEngine) Attach(_ context.Context, _ string) error {
	if e.attachErr != nil {
		return e.attachErr
	}
	e.live.Add(1)
	return nil
}

func (e *fakeEngine) Reload(context.Context) error {
	e.reloads++
	return nil
}

func (e *fakeEngine) Recover(context.Context) error {
	e.recovers++
	return nil
}

func (e *fakeEngine) Close() error {
	if !e.closed {
		e.closed = true
		e.live.Add(-1)
	}
	return nil
}

type engineTracker struct {
	live    atomic.Int32
	maxLive atomic.Int32
	created []*fakeEngine
}

func (tr *engineTracker) factory() StreamEngine {
	engine := &fakeEngine{live: &tr.live}
	tr.created = append(tr.created, engine)
	return engine
}

// Attach bumps live before maxLive is sampled, so sample after each Select.
func (tr *engineTracker) sample() {
	if n := tr.live.Load(); n > tr.maxLive.Load() {
		tr.maxLive.Store(n)
	}
}

func TestSelectTearsDownPriorSession(t *testing.T) {
	tracker := &engineTracker{}
	manager := NewManager(tracker.factory)

	ctx := context.Background()
	sourceA := adaptiveSource("a")
	sourceB := adaptiveSource("b")

	for _, source := range []domain.Source{sourceA, sourceB, sourceA} {
		if _, err := manager.Select(ctx, source); err != nil {
			t.Fatalf("Select(%s): %v", source.ID, err)
		}
		tracker.sample()
	}

	if got := tracker.maxLive.Load(); got != 1 {
		t.Fatalf("max live engines = %d, want 1", got)
	}
	if len(tracker.created) != 3 {
		t.Fatalf("engines created = %d, want 3", len(tracker.created))
	}
	if !tracker.created[0].closed || !tracker.created[1].closed {
		t.Fatal("prior engines must be closed before the next session starts")
	}

	session, ok := manager.Current()
	if !ok || session.SourceID != "a" {
		t.Fatalf("current session = %+v", session)
	}
}

func TestSelectSameSourceIsNoOp(t *testing.T) {
	tracker := &engineTracker{}
	manager := NewManager(tracker.factory)

	ctx := context.Background()
	source := adaptiveSource("a")
	if _, err := manager.Select(ctx, source); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := manager.Select(ctx, source); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if len(tracker.created) != 1 {
		t.Fatalf("engines created = %d, want 1", len(tracker.created))
	}
	if tracker.created[0].closed {
		t.Fatal("reselecting the active source must not recycle its engine")
	}
}

func TestHandleEventDrivesEngine(t *testing.T) {
	tracker := &engineTracker{}
	manager := NewManager(tracker.factory)

	ctx := context.Background()
	if _, err := manager.Select(ctx, adaptiveSource("a")); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := manager.HandleEvent(ctx, Event{Kind: EventStarted}); err != nil {
		t.Fatalf("started: %v", err)
	}

	if _, err := manager.HandleEvent(ctx, Event{Kind: EventError, Class: ErrorNetwork}); err != nil {
		t.Fatalf("network error: %v", err)
	}
	engine := tracker.created[0]
	if engine.reloads != 1 {
		t.Fatalf("reloads = %d, want 1", engine.reloads)
	}

	if _, err := manager.HandleEvent(ctx, Event{Kind: EventRecovered}); err != nil {
		t.Fatalf("recovered: %v", err)
	}
	if _, err := manager.HandleEvent(ctx, Event{Kind: EventError, Class: ErrorMedia}); err != nil {
		t.Fatalf("media error: %v", err)
	}
	if engine.recovers != 1 {
		t.Fatalf("recovers = %d, want 1", engine.recovers)
	}

	session, err := manager.HandleEvent(ctx, Event{Kind: EventError, Class: ErrorMedia})
	if err != nil {
		t.Fatalf("second media error: %v", err)
	}
	if session.State != StateFailed {
		t.Fatalf("state = %s, want failed", session.State)
	}
	if !engine.closed {
		t.Fatal("engine must be released when the session fails")
	}
}

func TestEmbedSelectionNeedsNoEngine(t *testing.T) {
	tracker := &engineTracker{}
	manager := NewManager(tracker.factory)

	session, err := manager.Select(context.Background(), domain.Source{
		ID:           "embed-vidsrc-27205",
		PlaybackType: domain.PlaybackEmbed,
		Locator:      "https://vidsrc.xyz/embed/movie/27205",
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if session.State != StatePlaying {
		t.Fatalf("state = %s, want playing synthesized on select", session.State)
	}
	if len(tracker.created) != 0 {
		t.Fatal("embed playback must not allocate a stream engine")
	}
}

func TestAttachFailureFailsSession(t *testing.T) {
	var live atomic.Int32
	attachErr := errors.New("surface unavailable")
	manager := NewManager(func() StreamEngine {
		return &fakeEngine{live: &live, attachErr: attachErr}
	})

	session, err := manager.Select(context.Background(), adaptiveSource("a"))
	if err == nil {
		t.Fatal("expected attach error")
	}
	if session.State != StateFailed {
		t.Fatalf("state = %s, want failed", session.State)
	}

	// Switching away from the failed source still works.
	session, err = manager.Select(context.Background(), domain.Source{
		ID:           "embed-vidsrc-27205",
		PlaybackType: domain.PlaybackEmbed,
	})
	if err != nil {
		t.Fatalf("Select after failure: %v", err)
	}
	if session.State != StatePlaying {
		t.Fatalf("state = %s", session.State)
	}
}
