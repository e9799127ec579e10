// Package engine – Conversation
//
// Conversation is the top-level orchestrator of one user's chat session: it
// holds the in-memory message sequence (the authoritative conversation for
// the current process, regardless of remote write success), dispatches
// questions to the answering service, synchronizes exchanges to the session
// store, and drives the feedback solicitation state machine.
//
// Concurrency model: operations are serialized under one mutex, matching
// the single-writer semantics of a browser session. Asynchronous work that
// may outlive a reset (the deferred feedback prompt) is guarded by an epoch
// counter so a stale completion never mutates state belonging to the new
// context.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/univassist/chat-engine/internal/domain"
)

// Synthetic bot message copy, preserved verbatim from the product.
const (
	welcomeText = "¡Hola! 👋 Soy tu asistente virtual universitario. Puedo ayudarte con información sobre tus cursos y carrera."
	errorReply  = "Lo siento, ocurrió un error al procesar tu pregunta. Por favor intenta nuevamente."

	thanksSatisfied   = "¡Gracias por tu feedback positivo! 😊 Me alegra haber podido ayudarte."
	thanksUnsatisfied = "Gracias por tu feedback. Tomaré en cuenta tus comentarios para mejorar. ¿Hay algo más específico en lo que pueda ayudarte?"
)

// SessionStore is the remote persistence synchronizer consumed by the
// engine (implemented by services.SessionService).
type SessionStore interface {
	// Load hydrates a session document, enforcing ownership.
	Load(ctx context.Context, id, requestingUserID string) (*domain.ChatSession, error)
	// Append persists an exchange; creates the document and returns its new
	// identity when the session has none yet.
	Append(ctx context.Context, session *domain.ChatSession, newMessages []domain.Message, threadID string) (string, error)
	// MarkFeedbackGiven replaces the document's feedback dedup snapshot.
	MarkFeedbackGiven(ctx context.Context, sessionID string, given []int64) error
}

// AnswerClient is the answering-service surface consumed by the engine
// (implemented by backend.Client).
type AnswerClient interface {
	Health(ctx context.Context) error
	Ask(ctx context.Context, question, curso, carrera, threadID string) (*domain.Answer, error)
	SendFeedback(ctx context.Context, rec domain.FeedbackRecord) error
}

// Navigator is the routing collaborator. The engine signals address
// changes (adopting a freshly created session id, stripping a consumed
// reset token, bailing out of a forbidden session); it never owns routes.
type Navigator interface {
	// Replace updates the current address without adding a history entry.
	Replace(path string)
}

// Profile is the immutable session context passed into the engine at
// construction: the authenticated user and their profile fields.
type Profile struct {
	UserID  string
	Curso   string
	Carrera string
}

// Complete reports whether the profile carries the fields required for an
// exchange.
func (p Profile) Complete() bool { return p.Curso != "" && p.Carrera != "" }

// feedbackState enumerates the solicitation machine's states. "resolved"
// collapses back into idle immediately after a successful submission.
type feedbackState int

const (
	fbIdle feedbackState = iota
	fbPromptVisible
	fbSubmitting
)

func (s feedbackState) String() string {
	switch s {
	case fbPromptVisible:
		return "prompt-visible"
	case fbSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Options configures a Conversation.
type Options struct {
	Store   SessionStore
	Backend AnswerClient
	Nav     Navigator
	Profile Profile

	// FeedbackDelay defers the prompt after an eligible bot answer so it
	// does not interrupt the user's reading. A non-positive delay fires
	// synchronously (used by tests).
	FeedbackDelay time.Duration

	// HealthTimeout bounds the startup connectivity probe. Zero means the
	// caller's context is the only bound.
	HealthTimeout time.Duration

	Log zerolog.Logger
}

// Conversation is the engine for one logical chat session.
type Conversation struct {
	mu sync.Mutex

	store   SessionStore
	backend AnswerClient
	nav       Navigator
	profile   Profile
	fbDelay   time.Duration
	healthTTL time.Duration
	log       zerolog.Logger

	status   domain.ServerStatus
	messages []domain.Message

	sessionID string
	threadID  string

	showSuggestions bool
	lastError       string

	// Resolver memory.
	lastResetToken  string
	loadedSessionID string
	skipReload      bool

	// Feedback machine.
	feedbackGiven map[int64]struct{}
	fbState       feedbackState
	pendingID     int64
	fbTimer       *time.Timer

	// epoch invalidates deferred work scheduled before a reset.
	epoch uint64

	lastMessageID int64
}

// New constructs a Conversation seeded with the welcome message. The
// connectivity status stays "checking" until Start probes the backend.
func New(opts Options) *Conversation {
	c := &Conversation{
		store:         opts.Store,
		backend:       opts.Backend,
		nav:           opts.Nav,
		profile:       opts.Profile,
		fbDelay:       opts.FeedbackDelay,
		healthTTL:     opts.HealthTimeout,
		log:           opts.Log,
		status:        domain.StatusChecking,
		feedbackGiven: make(map[int64]struct{}),
	}
	c.seedWelcome()
	return c
}

// Start issues the single connectivity probe of the engine's lifetime.
// There is no periodic re-probe; a backend that goes away mid-session is
// detected by the next failed send.
func (c *Conversation) Start(ctx context.Context) {
	if c.healthTTL > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.healthTTL)
		defer cancel()
	}
	err := c.backend.Health(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status = domain.StatusOffline
		c.log.Warn().Err(err).Msg("answering service offline")
		return
	}
	c.status = domain.StatusOnline
}

// Status returns the connectivity status.
func (c *Conversation) Status() domain.ServerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// State is an immutable snapshot of the conversation for transport layers.
type State struct {
	Status          domain.ServerStatus `json:"status"`
	Messages        []domain.Message    `json:"messages"`
	SessionID       string              `json:"sessionId,omitempty"`
	ThreadID        string              `json:"threadId,omitempty"`
	ShowSuggestions bool                `json:"showSuggestions"`
	FeedbackState   string              `json:"feedbackState"`
	PendingFeedback int64               `json:"pendingFeedbackId,omitempty"`
	LastError       string              `json:"lastError,omitempty"`
}

// Snapshot copies the current state.
func (c *Conversation) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]domain.Message, len(c.messages))
	copy(msgs, c.messages)

	return State{
		Status:          c.status,
		Messages:        msgs,
		SessionID:       c.sessionID,
		ThreadID:        c.threadID,
		ShowSuggestions: c.showSuggestions,
		FeedbackState:   c.fbState.String(),
		PendingFeedback: c.pendingID,
		LastError:       c.lastError,
	}
}

// seedWelcome resets the message sequence to the single welcome message.
// Callers hold no lock at construction; reset paths hold c.mu.
func (c *Conversation) seedWelcome() {
	c.messages = []domain.Message{{
		ID:        c.nextMessageID(),
		Text:      welcomeText,
		Sender:    domain.SenderBot,
		Timestamp: time.Now(),
		Type:      domain.MessageTypeWelcome,
	}}
	c.showSuggestions = true
}

// nextMessageID derives a time-based id, bumping by one on collisions so
// ids stay unique within the session.
func (c *Conversation) nextMessageID() int64 {
	id := time.Now().UnixMilli()
	if id <= c.lastMessageID {
		id = c.lastMessageID + 1
	}
	c.lastMessageID = id
	return id
}

// appendLocal appends to the in-memory sequence. The sequence is
// append-only; nothing ever rewrites or removes an entry.
func (c *Conversation) appendLocal(m domain.Message) {
	c.messages = append(c.messages, m)
}

// sessionSnapshotLocked builds the ChatSession view handed to the store.
// Prior messages exclude the ones being appended in the current call.
func (c *Conversation) sessionSnapshotLocked(exceptLast int) *domain.ChatSession {
	prior := c.messages
	if exceptLast > 0 && exceptLast <= len(prior) {
		prior = prior[:len(prior)-exceptLast]
	}
	msgs := make(domain.MessageList, len(prior))
	copy(msgs, prior)

	return &domain.ChatSession{
		ID:             c.sessionID,
		UserID:         c.profile.UserID,
		Curso:          c.profile.Curso,
		Carrera:        c.profile.Carrera,
		ThreadID:       c.threadID,
		Messages:       msgs,
		FeedbacksGiven: c.feedbackGivenLocked(),
	}
}

// feedbackGivenLocked returns the dedup set as a sorted snapshot.
func (c *Conversation) feedbackGivenLocked() domain.Int64List {
	out := make(domain.Int64List, 0, len(c.feedbackGiven))
	for id := range c.feedbackGiven {
		out = append(out, id)
	}
	// Insertion order is not tracked; sort for stable persisted snapshots.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
