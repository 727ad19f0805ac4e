package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"watchsource/internal/domain"
	"watchsource/internal/metrics"
)

// StreamEngine is the adaptive-stream surface the manager drives. Attach
// binds a locator to the media surface; Reload re-fetches the current
// manifest after a network error; Recover invokes the engine's internal
// media recovery; Close releases all engine resources.
type StreamEngine interface {
	Attach(ctx context.Context, locator string) error
	Reload(ctx context.Context) error
	Recover(ctx context.Context) error
	Close() error
}

// EngineFactory builds one engine per adaptive-stream session.
type EngineFactory func() StreamEngine

// Manager enforces the one-live-session invariant: selecting a source tears
// the previous session's engine down synchronously before the new session
// exists, so two engines never hold the media surface at once.
type Manager struct {
	mu      sync.Mutex
	session *Session
	engine  StreamEngine

	newEngine EngineFactory
	logger    *slog.Logger
}

type ManagerOption func(*Manager)

func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(factory EngineFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		newEngine: factory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Select switches playback to the given source. Selecting the already
// selected source is a no-op, regardless of its state. Switching is allowed
// from any state, including Failed.
func (m *Manager) Select(ctx context.Context, source domain.Source) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.SourceID == source.ID {
		return *m.session, nil
	}

	if err := m.releaseLocked(); err != nil {
		m.logger.Warn("engine release failed",
			slog.String("sourceId", source.ID),
			slog.String("error", err.Error()),
		)
	}

	session := NewSession(source)
	m.observe(StateIdle, session.State)

	switch source.PlaybackType {
	case domain.PlaybackEmbed, domain.PlaybackExternalHandoff:
		// No in-page engine; rendering is the iframe's or the external
		// handler's problem, so Playing is synthesized immediately.
		next, _ := Transition(session, Event{Kind: EventAttached})
		m.observe(session.State, next.State)
		session = next
	case domain.PlaybackAdaptiveStream:
		engine := m.newEngine()
		if err := engine.Attach(ctx, source.Locator); err != nil {
			_ = engine.Close()
			session.State = StateFailed
			session.LastError = err.Error()
			m.observe(StateLoading, StateFailed)
			m.session = &session
			return session, fmt.Errorf("attach %s: %w", source.ID, err)
		}
		m.engine = engine
	default:
		return Session{}, fmt.Errorf("%w: unknown playbackType %q", domain.ErrValidation, source.PlaybackType)
	}

	m.session = &session
	return session, nil
}

// HandleEvent feeds a media-surface event into the current session and
// performs the resulting engine action. Events with no live session are
// dropped.
func (m *Manager) HandleEvent(ctx context.Context, event Event) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return Session{}, nil
	}

	prev := m.session.State
	next, action := Transition(*m.session, event)
	m.session = &next
	if next.State != prev {
		m.observe(prev, next.State)
	}

	var err error
	switch action {
	case ActionReload:
		if m.engine != nil {
			err = m.engine.Reload(ctx)
		}
	case ActionRecover:
		if m.engine != nil {
			err = m.engine.Recover(ctx)
		}
	case ActionRelease:
		err = m.releaseEngineLocked()
	}
	if err != nil {
		m.logger.Warn("playback action failed",
			slog.String("sourceId", next.SourceID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
	return next, err
}

// Stop tears down the current session, returning the manager to Idle.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked()
}

// Current returns the live session, if any.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

func (m *Manager) releaseLocked() error {
	err := m.releaseEngineLocked()
	if m.session != nil {
		m.observe(m.session.State, StateIdle)
		m.session = nil
	}
	return err
}

func (m *Manager) releaseEngineLocked() error {
	if m.engine == nil {
		return nil
	}
	err := m.engine.Close()
	m.engine = nil
	return err
}

func (m *Manager) observe(from, to State) {
	metrics.PlaybackTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}
