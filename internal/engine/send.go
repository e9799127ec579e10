package engine

import (
	"context"
	"strings"
	"time"

	"github.com/univassist/chat-engine/internal/domain"
)

// Send runs one question/answer exchange.
//
// Gating happens before any mutation: the profile must be complete, the
// connectivity monitor must have resolved to online, and the trimmed text
// must be non-empty. Once past the gates the user message is appended
// optimistically; it stays in the sequence even if everything after fails.
//
// On a successful answer the bot message is appended, a backend-assigned
// thread id is adopted, and the exchange pair is persisted. Persistence
// failures are absorbed: the local conversation is authoritative and the
// user is never interrupted over a write error. A failed answer appends an
// error-flagged bot message instead and returns ErrAnswerFailed.
func (c *Conversation) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.profile.Complete() {
		return ErrProfileIncomplete
	}
	if c.status != domain.StatusOnline {
		sendsTotal.WithLabelValues("rejected").Inc()
		return ErrServerUnavailable
	}
	if text == "" {
		return ErrEmptyMessage
	}

	userMsg := domain.Message{
		ID:        c.nextMessageID(),
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: time.Now(),
	}
	c.appendLocal(userMsg)
	c.showSuggestions = false
	c.lastError = ""

	// A new question supersedes a pending or visible prompt. An in-flight
	// submission is left alone; its epoch check decides its fate.
	if c.fbState == fbPromptVisible {
		c.cancelFeedbackLocked()
	} else if c.fbTimer != nil {
		c.fbTimer.Stop()
		c.fbTimer = nil
	}

	answer, err := c.backend.Ask(ctx, text, c.profile.Curso, c.profile.Carrera, c.threadID)
	if err != nil {
		c.log.Error().Err(err).Msg("answer request failed")
		c.lastError = err.Error()
		c.appendLocal(domain.Message{
			ID:        c.nextMessageID(),
			Text:      errorReply,
			Sender:    domain.SenderBot,
			Timestamp: time.Now(),
			IsError:   true,
		})
		sendsTotal.WithLabelValues("error").Inc()
		return ErrAnswerFailed
	}

	botMsg := domain.Message{
		ID:                c.nextMessageID(),
		Text:              answer.Text,
		Sender:            domain.SenderBot,
		Timestamp:         time.Now(),
		AssistantID:       answer.AssistantID,
		ShouldAskFeedback: answer.ShouldAskFeedback,
	}
	c.appendLocal(botMsg)
	if answer.ThreadID != "" {
		c.threadID = answer.ThreadID
	}
	sendsTotal.WithLabelValues("ok").Inc()

	c.persistExchangeLocked(ctx, []domain.Message{userMsg, botMsg})

	if answer.ShouldAskFeedback {
		if _, given := c.feedbackGiven[botMsg.ID]; !given {
			c.scheduleFeedbackLocked(botMsg.ID)
		}
	}
	return nil
}

// persistExchangeLocked writes the new pair through the store. Creation
// adopts the store-assigned identity and moves the address to it without
// re-triggering a hydration.
func (c *Conversation) persistExchangeLocked(ctx context.Context, pair []domain.Message) {
	creating := c.sessionID == ""

	id, err := c.store.Append(ctx, c.sessionSnapshotLocked(len(pair)), pair, c.threadID)
	if err != nil {
		persistFailures.Inc()
		c.log.Error().Err(err).Str("session_id", c.sessionID).Msg("exchange persist failed")
		return
	}

	if creating {
		c.sessionID = id
		c.skipReload = true
		if c.nav != nil {
			c.nav.Replace("/chat/" + id)
		}
	}
}

// RetryLast resends the text of the most recent user-authored message,
// running the full send path again (so the retried question shows up as a
// new message, exactly like typing it again).
func (c *Conversation) RetryLast(ctx context.Context) error {
	c.mu.Lock()
	var text string
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Sender == domain.SenderUser {
			text = c.messages[i].Text
			break
		}
	}
	c.mu.Unlock()

	if text == "" {
		return ErrNothingToRetry
	}
	return c.Send(ctx, text)
}
