// Package services – SessionService
//
// This file implements the remote persistence synchronizer. It owns the
// create-vs-merge decision for session documents: the first successful
// exchange creates the document (with a title derived from the first user
// message), every later exchange merges only the new messages via the
// store's additive-merge primitive. It also mirrors feedback dedup state
// onto the document.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// session and user identifiers.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/univassist/chat-engine/internal/domain"
	"github.com/univassist/chat-engine/internal/repo"
)

// defaultTitle is used when no user message exists to derive a title from.
const defaultTitle = "Nueva conversación"

// SessionService synchronizes in-memory conversations with the session
// document store. Safe for concurrent use.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// TitleMaxRunes caps derived titles by rune length before the ellipsis
	// marker is appended.
	TitleMaxRunes int
	// TitleLocale is the locale used for title normalization.
	TitleLocale language.Tag

	// now is a clock seam for deterministic session ids in tests.
	now func() time.Time
}

// NewSessionService constructs a SessionService with production defaults
// (50-rune titles, Spanish locale).
func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{
		DB:            db,
		TitleMaxRunes: 50,
		TitleLocale:   language.Spanish,
		now:           time.Now,
	}
}

// Load hydrates a session document for requestingUserID.
//
// Error mapping:
//   - missing document          -> ErrSessionNotFound
//   - owner != requestingUserID -> ErrForbiddenSession (hard stop)
func (s *SessionService) Load(ctx context.Context, id, requestingUserID string) (*domain.ChatSession, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Load",
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("user.id", requestingUserID),
		),
	)
	defer span.End()

	doc, err := repo.GetSession(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if doc.UserID != requestingUserID {
		return nil, ErrForbiddenSession
	}
	return doc, nil
}

// Append persists one exchange.
//
// When session.ID is empty, a new identity is synthesized from the owner
// and the current time, and the document is written in full: every message
// accumulated so far (session.Messages) plus newMessages, the derived
// title, and the thread/profile metadata. The returned id must be adopted
// by the caller for all subsequent operations.
//
// When session.ID is set, only newMessages are written, via the store's
// additive-merge operation; prior history is never re-transmitted.
//
// threadID may be empty when the backend has not assigned one yet.
func (s *SessionService) Append(ctx context.Context, session *domain.ChatSession, newMessages []domain.Message, threadID string) (string, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.String("user.id", session.UserID),
			attribute.Int("messages.new", len(newMessages)),
		),
	)
	defer span.End()

	if session.ID == "" {
		all := make(domain.MessageList, 0, len(session.Messages)+len(newMessages))
		all = append(all, session.Messages...)
		all = append(all, newMessages...)

		doc := &domain.ChatSession{
			ID:             repo.NewSessionID(session.UserID, s.clock()()),
			UserID:         session.UserID,
			Title:          s.deriveTitle(all),
			Messages:       all,
			ThreadID:       threadID,
			Curso:          session.Curso,
			Carrera:        session.Carrera,
			FeedbacksGiven: session.FeedbacksGiven,
		}
		if err := repo.CreateSession(ctx, s.DB, doc); err != nil {
			return "", err
		}
		return doc.ID, nil
	}

	if err := repo.AppendMessages(ctx, s.DB, session.ID, newMessages, threadID, session.Curso, session.Carrera); err != nil {
		return "", err
	}
	return session.ID, nil
}

// MarkFeedbackGiven replaces the document's feedbacksGiven snapshot.
func (s *SessionService) MarkFeedbackGiven(ctx context.Context, sessionID string, given []int64) error {
	return repo.ReplaceFeedbackGiven(ctx, s.DB, sessionID, domain.Int64List(given))
}

// ListPage returns a page of the user's sessions plus the total count, for
// the history sidebar. Defaults are applied for invalid page/pageSize.
func (s *SessionService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountSessions(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatSession{}, 0, nil
	}

	items, err := repo.ListSessionsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats exposes the aggregate metadata used for weak ETags on listings.
func (s *SessionService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.SessionsStats(ctx, s.DB, userID)
}

// deriveTitle builds the document title from the first user-authored
// message: trimmed, whitespace-collapsed, leading letter title-cased with
// the configured locale, truncated to TitleMaxRunes runes with an ellipsis
// marker when longer.
func (s *SessionService) deriveTitle(messages domain.MessageList) string {
	var source string
	for _, m := range messages {
		if m.Sender == domain.SenderUser {
			source = m.Text
			break
		}
	}
	source = collapseWhitespace(source)
	if source == "" {
		return defaultTitle
	}
	source = capitalizeFirstLetter(source, s.localeOrDefault())

	max := s.TitleMaxRunes
	if max <= 0 {
		max = 50
	}
	if utf8.RuneCountInString(source) > max {
		return string([]rune(source)[:max]) + "..."
	}
	return source
}

// localeOrDefault returns the casing locale, falling back to Spanish.
func (s *SessionService) localeOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.Spanish
	}
	return s.TitleLocale
}

// capitalizeFirstLetter title-cases the first letter of v (questions often
// open with inverted punctuation, which is skipped over) so sidebar entries
// read as headings.
func capitalizeFirstLetter(v string, locale language.Tag) string {
	caser := cases.Title(locale)
	for i, r := range v {
		if !unicode.IsLetter(r) {
			continue
		}
		return v[:i] + caser.String(string(r)) + v[i+utf8.RuneLen(r):]
	}
	return v
}

func (s *SessionService) clock() func() time.Time {
	if s.now != nil {
		return s.now
	}
	return time.Now
}

// collapseWhitespace trims and collapses consecutive whitespace to single
// spaces.
func collapseWhitespace(v string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(v), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)
