// Feedback HTTP handlers.
//
// This file exposes the REST endpoints for the feedback solicitation state
// machine:
//   - POST   /conversation/feedback  (submit the visible prompt's verdict)
//   - DELETE /conversation/feedback  (dismiss the visible prompt)
//
// Dismissing with a verdict already selected counts as a submission, so a
// user who picked a rating and then closed the dialog is not lost; the
// client signals this with the `satisfied` query parameter on DELETE.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univassist/chat-engine/internal/engine"
	"github.com/univassist/chat-engine/internal/sysutil"
)

// SubmitFeedbackRequest is the JSON payload for answering a feedback prompt.
type SubmitFeedbackRequest struct {
	// Satisfied is the verdict; a pointer so "absent" binds as invalid.
	Satisfied *bool  `json:"satisfied" binding:"required" example:"true"`
	Comment   string `json:"comment,omitempty" example:"Respuesta clara y completa"`
}

// SubmitFeedback godoc
// @ID          submitFeedback
// @Summary     Submit feedback for the visible prompt
// @Description Records the verdict for the prompted answer and appends a thank-you message.
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.SubmitFeedbackRequest  true  "Feedback payload"
//
// @Success     200  {object}  handlers.ConversationResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     409  {object}  handlers.ErrorResponse  "No prompt visible"
// @Failure     502  {object}  handlers.ErrorResponse  "Feedback service failed"
// @Router      /conversation/feedback [post]
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Satisfied == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "satisfied required")
		return
	}

	s := h.session(c)
	if err := s.Conv.SubmitFeedback(c.Request.Context(), *req.Satisfied, req.Comment); err != nil {
		if errors.Is(err, engine.ErrNoPromptVisible) {
			fail(c, http.StatusConflict, ErrCodeConflict, "no feedback prompt visible")
			return
		}
		// Machine returned to prompt-visible; the client may retry.
		fail(c, http.StatusBadGateway, ErrCodeFeedbackFailed, "feedback delivery failed")
		return
	}

	h.respondState(c, http.StatusOK, s)
}

// DismissFeedback godoc
// @ID          dismissFeedback
// @Summary     Dismiss the visible feedback prompt
// @Description Hides the prompt. With ?satisfied=true|false the dismissal counts as a submission.
// @Tags        Feedback
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"           example(user123)
// @Param       satisfied  query   bool    false "Verdict selected before closing" example(true)
//
// @Success     200  {object}  handlers.ConversationResponse
// @Success     204  {string}  string  "No Content"
// @Failure     409  {object}  handlers.ErrorResponse  "No prompt visible"
// @Router      /conversation/feedback [delete]
func (h *Handlers) DismissFeedback(c *gin.Context) {
	s := h.session(c)

	// A selected verdict at close time is an implicit submission.
	if v, present := c.GetQuery("satisfied"); present {
		satisfied := sysutil.IsTruthy(v)
		if err := s.Conv.SubmitFeedback(c.Request.Context(), satisfied, ""); err != nil {
			if errors.Is(err, engine.ErrNoPromptVisible) {
				fail(c, http.StatusConflict, ErrCodeConflict, "no feedback prompt visible")
				return
			}
			fail(c, http.StatusBadGateway, ErrCodeFeedbackFailed, "feedback delivery failed")
			return
		}
		h.respondState(c, http.StatusOK, s)
		return
	}

	if err := s.Conv.DismissFeedback(); err != nil {
		fail(c, http.StatusConflict, ErrCodeConflict, "no feedback prompt visible")
		return
	}
	noContent(c)
}
