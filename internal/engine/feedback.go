package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/univassist/chat-engine/internal/domain"
)

// scheduleFeedbackLocked arms the deferred feedback prompt for messageID.
// The delay exists so the prompt does not land on top of the answer the
// user is still reading. A non-positive delay fires inline, which keeps
// tests deterministic.
//
// The machine only transitions out of idle: a trigger arriving while a
// prompt is visible or a submission is in flight is dropped, so the
// in-flight outcome can never interleave with a newly armed prompt.
//
// The captured epoch guards the callback: a reset or session switch between
// scheduling and firing bumps the epoch and the stale callback drops out
// without touching state.
func (c *Conversation) scheduleFeedbackLocked(messageID int64) {
	if c.fbState != fbIdle {
		return
	}
	if c.fbTimer != nil {
		c.fbTimer.Stop()
		c.fbTimer = nil
	}

	if c.fbDelay <= 0 {
		c.showPromptLocked(messageID)
		return
	}

	epoch := c.epoch
	c.fbTimer = time.AfterFunc(c.fbDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return
		}
		c.fbTimer = nil
		c.showPromptLocked(messageID)
	})
}

func (c *Conversation) showPromptLocked(messageID int64) {
	if c.fbState != fbIdle {
		return
	}
	if _, given := c.feedbackGiven[messageID]; given {
		return
	}
	c.fbState = fbPromptVisible
	c.pendingID = messageID
	feedbackPrompts.Inc()
}

// cancelFeedbackLocked disarms any pending prompt timer and returns the
// machine to idle.
func (c *Conversation) cancelFeedbackLocked() {
	if c.fbTimer != nil {
		c.fbTimer.Stop()
		c.fbTimer = nil
	}
	c.fbState = fbIdle
	c.pendingID = 0
}

// SubmitFeedback delivers the visible prompt's verdict to the feedback
// service.
//
// The machine moves prompt-visible -> submitting for the duration of the
// call. Success marks the message as rated (locally and on the session
// document), appends a thank-you bot message, and returns to idle; the same
// message is never prompted for again. Failure returns the machine to
// prompt-visible so the user can retry, and nothing is marked.
func (c *Conversation) SubmitFeedback(ctx context.Context, satisfied bool, comment string) error {
	c.mu.Lock()
	if c.fbState != fbPromptVisible {
		c.mu.Unlock()
		return ErrNoPromptVisible
	}
	c.fbState = fbSubmitting
	messageID := c.pendingID
	rec := c.feedbackRecordLocked(messageID, satisfied, comment)
	epoch := c.epoch
	c.mu.Unlock()

	err := c.backend.SendFeedback(ctx, rec)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		// The conversation was reset mid-flight; the result belongs to a
		// context that no longer exists.
		return err
	}

	if err != nil {
		c.log.Error().Err(err).Int64("message_id", messageID).Msg("feedback submit failed")
		c.fbState = fbPromptVisible
		return err
	}

	c.feedbackGiven[messageID] = struct{}{}
	c.fbState = fbIdle
	c.pendingID = 0
	feedbackSubmissions.WithLabelValues(boolLabel(satisfied)).Inc()

	if c.sessionID != "" {
		if serr := c.store.MarkFeedbackGiven(ctx, c.sessionID, c.feedbackGivenLocked()); serr != nil {
			persistFailures.Inc()
			c.log.Error().Err(serr).Str("session_id", c.sessionID).Msg("feedback snapshot persist failed")
		}
	}

	thanks := thanksSatisfied
	if !satisfied {
		thanks = thanksUnsatisfied
	}
	thanksMsg := domain.Message{
		ID:        c.nextMessageID(),
		Text:      thanks,
		Sender:    domain.SenderBot,
		Timestamp: time.Now(),
		Type:      domain.MessageTypeFeedbackResponse,
	}
	c.appendLocal(thanksMsg)
	// The thank-you message is part of the durable conversation; without
	// this write a reload would drop it.
	if c.sessionID != "" {
		c.persistExchangeLocked(ctx, []domain.Message{thanksMsg})
	}
	return nil
}

// DismissFeedback hides the visible prompt without recording a verdict. The
// message stays eligible if a later answer re-solicits it.
func (c *Conversation) DismissFeedback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fbState != fbPromptVisible {
		return ErrNoPromptVisible
	}
	c.cancelFeedbackLocked()
	return nil
}

// feedbackRecordLocked assembles the wire record for the feedback service.
// Sessions that were never persisted get a provisional time-based chat id
// so the record still correlates to a conversation on the receiving side.
func (c *Conversation) feedbackRecordLocked(messageID int64, satisfied bool, comment string) domain.FeedbackRecord {
	chatID := c.sessionID
	if chatID == "" {
		chatID = fmt.Sprintf("temp_%d", time.Now().UnixMilli())
	}

	var assistantID string
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == messageID {
			assistantID = c.messages[i].AssistantID
			break
		}
	}

	return domain.FeedbackRecord{
		ChatID:         chatID,
		UserID:         c.profile.UserID,
		Curso:          c.profile.Curso,
		Carrera:        c.profile.Carrera,
		Satisfecho:     satisfied,
		Comentario:     comment,
		AssistantID:    assistantID,
		ThreadID:       c.threadID,
		NumeroMensajes: len(c.messages),
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
