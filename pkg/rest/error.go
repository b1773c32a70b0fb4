package rest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the backend denies access to a room
	// the current user is not a participant of.
	ErrUnauthorized = errors.New("access denied")
	// ErrNotFound is returned when the addressed room no longer exists.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx backend response. Detail carries the backend's
// `detail` (or `error`) body field when present.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Unwrap maps well-known statuses onto sentinel errors so callers can use
// errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}
