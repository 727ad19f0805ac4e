// Package playback drives the per-source playback session lifecycle. The
// transition rules are pure functions so they can be tested without a real
// media engine; the Manager applies the resulting actions to an engine.
package playback

import (
	"watchsource/internal/domain"
)

// State of a playback session. Failed is terminal per source; switching
// sources always starts the new one at Loading.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StatePlaying    State = "playing"
	StateRecovering State = "recovering"
	StateFailed     State = "failed"
)

// ErrorClass partitions stream errors by recovery policy.
type ErrorClass string

const (
	// ErrorNetwork is recoverable in place, with no retry bound while the
	// session lives.
	ErrorNetwork ErrorClass = "network"
	// ErrorMedia allows exactly one recovery attempt per session.
	ErrorMedia ErrorClass = "media"
	// ErrorFatal tears the session down immediately.
	ErrorFatal ErrorClass = "fatal"
)

// EventKind is what the media surface reports to the session.
type EventKind string

const (
	// EventAttached fires when the source is mounted on the surface.
	EventAttached EventKind = "attached"
	// EventStarted fires when frames are actually rendering.
	EventStarted EventKind = "started"
	// EventError carries a classified stream error.
	EventError EventKind = "error"
	// EventRecovered fires when an in-place recovery succeeded.
	EventRecovered EventKind = "recovered"
)

type Event struct {
	Kind  EventKind
	Class ErrorClass
	Cause string
}

// Action is the side effect the caller must perform after a transition.
type Action string

const (
	ActionNone Action = ""
	// ActionReload asks the engine to re-fetch the current manifest/segment
	// without tearing the session down.
	ActionReload Action = "reload"
	// ActionRecover asks the engine for its internal media recovery call.
	ActionRecover Action = "recover"
	// ActionRelease frees the session's engine resources.
	ActionRelease Action = "release"
)

// Session is the ephemeral per-source playback record. Never persisted.
type Session struct {
	SourceID     string
	PlaybackType domain.PlaybackType
	State        State
	LastError    string

	mediaRecoveryUsed bool
}

// NewSession starts a session in Loading for the given source.
func NewSession(source domain.Source) Session {
	return Session{
		SourceID:     source.ID,
		PlaybackType: source.PlaybackType,
		State:        StateLoading,
	}
}

// Transition computes the next session state and the action to perform.
// It never mutates its input and performs no I/O.
//
// Embed and external-handoff sources synthesize Playing on attach: an embed
// iframe is cross-origin opaque and a handoff has no in-page playback, so
// neither branch can observe errors and Failed is unreachable for both.
func Transition(s Session, event Event) (Session, Action) {
	switch s.PlaybackType {
	case domain.PlaybackEmbed, domain.PlaybackExternalHandoff:
		if s.State == StateLoading && (event.Kind == EventAttached || event.Kind == EventStarted) {
			s.State = StatePlaying
		}
		return s, ActionNone
	}

	// Adaptive stream.
	switch event.Kind {
	case EventAttached:
		return s, ActionNone
	case EventStarted:
		if s.State == StateLoading || s.State == StateRecovering {
			s.State = StatePlaying
			s.LastError = ""
		}
		return s, ActionNone
	case EventRecovered:
		if s.State == StateRecovering {
			s.State = StatePlaying
			s.LastError = ""
		}
		return s, ActionNone
	case EventError:
		return transitionOnError(s, event)
	default:
		return s, ActionNone
	}
}

func transitionOnError(s Session, event Event) (Session, Action) {
	if s.State == StateFailed || s.State == StateIdle {
		return s, ActionNone
	}
	s.LastError = event.Cause

	switch event.Class {
	case ErrorNetwork:
		s.State = StateRecovering
		return s, ActionReload
	case ErrorMedia:
		if s.mediaRecoveryUsed {
			s.State = StateFailed
			return s, ActionRelease
		}
		s.mediaRecoveryUsed = true
		s.State = StateRecovering
		return s, ActionRecover
	default:
		s.State = StateFailed
		return s, ActionRelease
	}
}
