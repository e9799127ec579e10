// Package services implements the remote persistence synchronizer for chat
// sessions. This file centralizes the service-level error values so callers
// (the engine and the HTTP handlers) can branch on them consistently.
//
// Translation into user-facing messages or HTTP status codes happens at the
// handler layer, never here.
package services

import "errors"

var (
	// ErrSessionNotFound indicates that the requested session document does
	// not exist in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrForbiddenSession indicates that the stored document's owner does
	// not match the requesting user. This is a hard stop, never silently
	// corrected.
	ErrForbiddenSession = errors.New("session belongs to another user")
)
