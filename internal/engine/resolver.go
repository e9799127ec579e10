package engine

import (
	"context"
	"errors"

	"github.com/univassist/chat-engine/internal/domain"
	"github.com/univassist/chat-engine/internal/services"
)

// Route is the address-derived input to the session identity resolver: the
// session id segment of the path plus the opaque reset token carried as a
// query parameter.
type Route struct {
	SessionID  string
	ResetToken string
}

// Resolve reconciles the conversation with the current route. It is the
// single entry point of the session identity resolver and is safe to call
// repeatedly with the same route (re-renders, refreshes).
//
// Precedence: a fresh reset token wins over everything else and is consumed
// exactly once; repeating the same token is a no-op. Otherwise a session id
// that differs from the one already materialized triggers a hydration from
// the store. A load of someone else's session is a hard stop: local state
// resets and the address falls back to the base chat route.
func (c *Conversation) Resolve(ctx context.Context, route Route) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if route.ResetToken != "" && route.ResetToken != c.lastResetToken {
		c.lastResetToken = route.ResetToken
		c.resetLocked()
		// Strip the consumed token so refreshes do not reset again.
		if c.nav != nil {
			c.nav.Replace("/chat")
		}
		return nil
	}

	if route.SessionID == "" {
		return nil
	}
	if route.SessionID == c.loadedSessionID {
		return nil
	}
	// A session created by this process is already materialized; the route
	// change that adopted its id must not trigger a reload.
	if c.skipReload && route.SessionID == c.sessionID {
		c.skipReload = false
		c.loadedSessionID = route.SessionID
		return nil
	}

	doc, err := c.store.Load(ctx, route.SessionID, c.profile.UserID)
	if err != nil {
		if errors.Is(err, services.ErrForbiddenSession) || errors.Is(err, services.ErrSessionNotFound) {
			c.log.Warn().Err(err).Str("session_id", route.SessionID).Msg("session load rejected")
			c.resetLocked()
			if c.nav != nil {
				c.nav.Replace("/chat")
			}
		}
		return err
	}

	c.sessionID = doc.ID
	c.loadedSessionID = doc.ID
	c.threadID = doc.ThreadID
	c.skipReload = false
	c.messages = append([]domain.Message(nil), doc.Messages...)
	if len(c.messages) == 0 {
		c.seedWelcome()
	} else {
		for _, m := range c.messages {
			if m.ID > c.lastMessageID {
				c.lastMessageID = m.ID
			}
		}
		c.showSuggestions = false
	}

	c.feedbackGiven = make(map[int64]struct{}, len(doc.FeedbacksGiven))
	for _, id := range doc.FeedbacksGiven {
		c.feedbackGiven[id] = struct{}{}
	}
	// Deferred or in-flight feedback work belongs to the session being
	// switched away from; the epoch bump orphans it.
	c.epoch++
	c.cancelFeedbackLocked()
	return nil
}

// resetLocked returns the conversation to its initial shape: welcome message
// only, no session identity, no thread, empty feedback state. The epoch bump
// invalidates any deferred feedback prompt scheduled before the reset.
func (c *Conversation) resetLocked() {
	c.epoch++
	c.cancelFeedbackLocked()

	c.sessionID = ""
	c.loadedSessionID = ""
	c.threadID = ""
	c.skipReload = false
	c.lastError = ""
	c.feedbackGiven = make(map[int64]struct{})
	c.seedWelcome()
}

// Reset discards the conversation without a route token. Exposed for the
// "new chat" action when the caller already owns navigation.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}
