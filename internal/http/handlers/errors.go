// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them
// programmatically, so renaming one is a breaking API change. Generic codes
// mirror HTTP status semantics; domain-specific codes cover outcomes a
// status alone cannot convey (an upstream answer failure is not the same as
// an internal error).
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeAnswerFailed      = "answer_failed"
	ErrCodeFeedbackFailed    = "feedback_failed"
	ErrCodeListFailed        = "list_failed"
	ErrCodeServerUnavailable = "server_unavailable"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)
