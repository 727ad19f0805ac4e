package playback

import (
	"testing"

	"watchsource/internal/domain"
)

func adaptiveSource(id string) domain.Source {
	return domain.Source{
		ID:           id,
		OriginKind:   domain.OriginCurated,
		PlaybackType: domain.PlaybackAdaptiveStream,
		Locator:      "https://example.org/" + id + "/master.m3u8",
	}
}

func TestNetworkErrorsRecoverUnbounded(t *testing.T) {
	session := NewSession(adaptiveSource("a"))
	session, _ = Transition(session, Event{Kind: EventStarted})
	if session.State != StatePlaying {
		t.Fatalf("state = %s, want playing", session.State)
	}

	// Network stalls are recoverable in place every time.
	for i := 0; i < 3; i++ {
		var action Action
		session, action = Transition(session, Event{Kind: EventError, Class: ErrorNetwork, Cause: "manifest stall"})
		if session.State != StateRecovering || action != ActionReload {
			t.Fatalf("iteration %d: state=%s action=%s", i, session.State, action)
		}
		session, action = Transition(session, Event{Kind: EventRecovered})
		if session.State != StatePlaying || action != ActionNone {
			t.Fatalf("iteration %d: state=%s after recovery", i, session.State)
		}
	}
	if session.State == StateFailed {
		t.Fatal("network errors must never reach Failed")
	}
}

func TestSecondMediaErrorFails(t *testing.T) {
	session := NewSession(adaptiveSource("a"))
	session, _ = Transition(session, Event{Kind: EventStarted})

	session, action := Transition(session, Event{Kind: EventError, Class: ErrorMedia, Cause: "decode error"})
	if session.State != StateRecovering || action != ActionRecover {
		t.Fatalf("first media error: state=%s action=%s", session.State, action)
	}

	session, action = Transition(session, Event{Kind: EventError, Class: ErrorMedia, Cause: "decode error"})
	if session.State != StateFailed || action != ActionRelease {
		t.Fatalf("second media error: state=%s action=%s", session.State, action)
	}

	// Failed is terminal per source.
	session, action = Transition(session, Event{Kind: EventError, Class: ErrorMedia})
	if session.State != StateFailed || action != ActionNone {
		t.Fatalf("post-failure event: state=%s action=%s", session.State, action)
	}
}

func TestMediaRecoverySucceedsOnce(t *testing.T) {
	session := NewSession(adaptiveSource("a"))
	session, _ = Transition(session, Event{Kind: EventStarted})
	session, _ = Transition(session, Event{Kind: EventError, Class: ErrorMedia})
	session, _ = Transition(session, Event{Kind: EventRecovered})
	if session.State != StatePlaying {
		t.Fatalf("state = %s after media recovery, want playing", session.State)
	}
	if session.LastError != "" {
		t.Fatalf("lastError = %q, want cleared", session.LastError)
	}
}

func TestFatalErrorReleasesImmediately(t *testing.T) {
	session := NewSession(adaptiveSource("a"))
	session, _ = Transition(session, Event{Kind: EventStarted})
	session, action := Transition(session, Event{Kind: EventError, Class: ErrorFatal, Cause: "engine crashed"})
	if session.State != StateFailed || action != ActionRelease {
		t.Fatalf("fatal error: state=%s action=%s", session.State, action)
	}
	if session.LastError != "engine crashed" {
		t.Fatalf("lastError = %q", session.LastError)
	}
}

func TestEmbedAndHandoffCannotFail(t *testing.T) {
	for _, playbackType := range []domain.PlaybackType{domain.PlaybackEmbed, domain.PlaybackExternalHandoff} {
		session := NewSession(domain.Source{ID: "e", PlaybackType: playbackType})
		session, action := Transition(session, Event{Kind: EventAttached})
		if session.State != StatePlaying || action != ActionNone {
			t.Fatalf("%s: state=%s action=%s after attach", playbackType, session.State, action)
		}
		session, action = Transition(session, Event{Kind: EventError, Class: ErrorFatal})
		if session.State != StatePlaying || action != ActionNone {
			t.Fatalf("%s: errors must be ignored, got state=%s action=%s", playbackType, session.State, action)
		}
	}
}
