package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Session bundles one user's Conversation with its navigation buffer.
type Session struct {
	Conv *Conversation
	Nav  *NavigationBuffer
}

// Manager is the per-user registry of live conversations. One Conversation
// exists per user at a time; retrieving it again returns the same instance
// so route resolution, sends and feedback all act on shared state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store   SessionStore
	backend AnswerClient
	fbDelay time.Duration
	log     zerolog.Logger

	// HealthTimeout bounds each new conversation's startup probe. Assign
	// before the first Acquire; zero leaves the probe unbounded.
	HealthTimeout time.Duration
}

// NewManager constructs an empty registry.
func NewManager(store SessionStore, backend AnswerClient, feedbackDelay time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		backend:  backend,
		fbDelay:  feedbackDelay,
		log:      log,
	}
}

// Acquire returns the user's live session, creating and probing a new one
// on first use. The profile is captured at creation; a changed profile
// takes effect after Release.
func (m *Manager) Acquire(ctx context.Context, profile Profile) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[profile.UserID]; ok {
		m.mu.Unlock()
		return s
	}

	nav := &NavigationBuffer{}
	conv := New(Options{
		Store:         m.store,
		Backend:       m.backend,
		Nav:           nav,
		Profile:       profile,
		FeedbackDelay: m.fbDelay,
		HealthTimeout: m.HealthTimeout,
		Log:           m.log.With().Str("user_id", profile.UserID).Logger(),
	})
	s := &Session{Conv: conv, Nav: nav}
	m.sessions[profile.UserID] = s
	m.mu.Unlock()

	conv.Start(ctx)
	return s
}

// Peek returns the user's live session without creating one.
func (m *Manager) Peek(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Release drops the user's session from the registry, disarming any
// deferred feedback work.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Conv.Reset()
	}
}
