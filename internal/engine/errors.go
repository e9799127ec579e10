// Package engine implements the chat session lifecycle: the conversation
// state controller, the session identity resolver, the connectivity health
// monitor, and the feedback solicitation state machine. This file defines
// the sentinel errors callers branch on.
package engine

import "errors"

var (
	// ErrProfileIncomplete is returned when the session context lacks the
	// course or program fields required to ask a question.
	ErrProfileIncomplete = errors.New("profile incomplete: course and program required")

	// ErrServerUnavailable is returned when the connectivity monitor has not
	// resolved to online; no network call is issued.
	ErrServerUnavailable = errors.New("answering service unavailable")

	// ErrEmptyMessage is returned when the question is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrAnswerFailed wraps a failed answer request; a synthetic
	// error-flagged bot message has already been appended locally.
	ErrAnswerFailed = errors.New("answer request failed")

	// ErrNoPromptVisible is returned when feedback is submitted or dismissed
	// while no prompt is showing.
	ErrNoPromptVisible = errors.New("no feedback prompt visible")

	// ErrNothingToRetry is returned by RetryLast when no user-authored
	// message exists to resend.
	ErrNothingToRetry = errors.New("nothing to retry")
)
