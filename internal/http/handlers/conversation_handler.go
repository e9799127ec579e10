// Conversation HTTP handlers.
//
// This file exposes the REST facade over the per-user conversation engine:
//   - GET    /conversation          (current state snapshot)
//   - POST   /conversation/resolve  (reconcile engine with the client route)
//   - POST   /conversation/messages (send a question, get the full exchange)
//   - POST   /conversation/retry    (resend the last user question)
//   - DELETE /conversation          (drop the live conversation)
//
// Handlers are transport-thin: they derive the session context from headers,
// delegate to the engine, and translate engine errors into HTTP responses.
// Navigation intents emitted by the engine (adopting a created session id,
// stripping a consumed reset token) are surfaced in the response body so the
// client router can apply them.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/univassist/chat-engine/internal/engine"
	"github.com/univassist/chat-engine/internal/services"
	"github.com/univassist/chat-engine/internal/sysutil"
)

// Handlers groups the HTTP endpoints for conversations, feedback, and the
// session history listing.
type Handlers struct {
	mgr      *engine.Manager
	sessions SessionLister
}

// New constructs a Handlers instance bound to the engine registry and the
// session listing service.
func New(mgr *engine.Manager, sessions SessionLister) *Handlers {
	return &Handlers{mgr: mgr, sessions: sessions}
}

// userID extracts the authenticated user id from Gin context (set by
// upstream middleware). If absent, it falls back to the "X-User-ID" header,
// and finally to "demo-user". Real authentication is an external
// collaborator; this is the demo seam.
func userID(c *gin.Context) string {
	var fromCtx string
	if v, ok := c.Get("userID"); ok {
		fromCtx, _ = v.(string)
	}
	var fromHeader string
	if c != nil && c.Request != nil {
		fromHeader = strings.TrimSpace(c.GetHeader("X-User-ID"))
	}
	return sysutil.FirstNonEmpty(fromCtx, fromHeader, "demo-user")
}

// profile assembles the engine session context from request headers. The
// course and program travel as headers because they belong to the user's
// profile, not to any single request body.
func profile(c *gin.Context) engine.Profile {
	return engine.Profile{
		UserID:  userID(c),
		Curso:   strings.TrimSpace(c.GetHeader("X-Curso")),
		Carrera: strings.TrimSpace(c.GetHeader("X-Carrera")),
	}
}

// session acquires the caller's live engine session.
func (h *Handlers) session(c *gin.Context) *engine.Session {
	return h.mgr.Acquire(c.Request.Context(), profile(c))
}

//
// DTOs
//

// ResolveRequest mirrors the client route: the session id path segment and
// the reset token query parameter, either of which may be empty.
type ResolveRequest struct {
	SessionID  string `json:"sessionId" example:"user123_1724630400000"`
	ResetToken string `json:"resetToken" example:"1724630400000"`
}

// SendMessageRequest is the JSON payload for asking a question.
type SendMessageRequest struct {
	Text string `json:"text" binding:"required,min=1" example:"¿Cuáles son los temas del parcial?"`
}

// ConversationResponse wraps an engine snapshot plus any pending navigation
// intent the client router should apply.
type ConversationResponse struct {
	State    engine.State `json:"state"`
	Navigate string       `json:"navigate,omitempty" example:"/chat/user123_1724630400000"`
}

func (h *Handlers) respondState(c *gin.Context, status int, s *engine.Session) {
	resp := ConversationResponse{State: s.Conv.Snapshot()}
	if path, ok := s.Nav.Pop(); ok {
		resp.Navigate = path
	}
	ok(c, status, resp)
}

//
// Handlers
//

// GetConversation godoc
// @ID          getConversation
// @Summary     Current conversation state
// @Description Returns the caller's conversation snapshot, creating a fresh one on first contact.
// @Tags        Conversation
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       X-Curso    header  string  false "User's course"          example(Taller de Proyecto 1)
// @Param       X-Carrera  header  string  false "User's program"         example(Ingeniería de Software)
//
// @Success     200  {object}  handlers.ConversationResponse
// @Router      /conversation [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	h.respondState(c, http.StatusOK, h.session(c))
}

// ResolveConversation godoc
// @ID          resolveConversation
// @Summary     Reconcile the conversation with a client route
// @Description Applies the route's reset token (consumed exactly once) or hydrates the addressed session.
// @Tags        Conversation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ResolveRequest  true  "Route payload"
//
// @Success     200  {object}  handlers.ConversationResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Session owned by another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversation/resolve [post]
func (h *Handlers) ResolveConversation(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	s := h.session(c)
	err := s.Conv.Resolve(c.Request.Context(), engine.Route{
		SessionID:  req.SessionID,
		ResetToken: req.ResetToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbiddenSession):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "session belongs to another user")
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	h.respondState(c, http.StatusOK, s)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Ask a question
// @Description Appends the question, obtains the assistant answer, and persists the exchange.
// @Tags        Conversation
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       X-Curso    header  string  true  "User's course"          example(Taller de Proyecto 1)
// @Param       X-Carrera  header  string  true  "User's program"         example(Ingeniería de Software)
// @Param       body       body    handlers.SendMessageRequest  true  "Question payload"
//
// @Success     200  {object}  handlers.ConversationResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Answering service failed"
// @Failure     503  {object}  handlers.ErrorResponse  "Answering service offline"
// @Router      /conversation/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	s := h.session(c)
	if err := s.Conv.Send(c.Request.Context(), req.Text); err != nil {
		h.failSend(c, s, err)
		return
	}
	h.respondState(c, http.StatusOK, s)
}

// RetryMessage godoc
// @ID          retryMessage
// @Summary     Resend the last question
// @Description Re-sends the most recent user-authored message, typically after a failed exchange.
// @Tags        Conversation
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.ConversationResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Nothing to retry"
// @Failure     502  {object}  handlers.ErrorResponse  "Answering service failed"
// @Router      /conversation/retry [post]
func (h *Handlers) RetryMessage(c *gin.Context) {
	s := h.session(c)
	if err := s.Conv.RetryLast(c.Request.Context()); err != nil {
		if errors.Is(err, engine.ErrNothingToRetry) {
			fail(c, http.StatusConflict, ErrCodeConflict, "no question to retry")
			return
		}
		h.failSend(c, s, err)
		return
	}
	h.respondState(c, http.StatusOK, s)
}

// DropConversation godoc
// @ID          dropConversation
// @Summary     Drop the live conversation
// @Description Releases the caller's in-memory conversation; the next request starts fresh.
// @Tags        Conversation
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     204  {string}  string  "No Content"
// @Router      /conversation [delete]
func (h *Handlers) DropConversation(c *gin.Context) {
	h.mgr.Release(userID(c))
	noContent(c)
}

// failSend maps Send/RetryLast errors to HTTP responses. On an answer
// failure the error-flagged bot message is already in the conversation;
// clients re-fetch the snapshot to render it.
func (h *Handlers) failSend(c *gin.Context, s *engine.Session, err error) {
	switch {
	case errors.Is(err, engine.ErrProfileIncomplete):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "course and program headers required")
	case errors.Is(err, engine.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
	case errors.Is(err, engine.ErrServerUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeServerUnavailable, "answering service unavailable")
	case errors.Is(err, engine.ErrAnswerFailed):
		fail(c, http.StatusBadGateway, ErrCodeAnswerFailed, "answer request failed")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
