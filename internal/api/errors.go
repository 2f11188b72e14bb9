package api

import (
	"errors"
	"fmt"
)

// Sentinels for the cases callers branch on. An auth failure anywhere is
// handled globally through the client's auth-failure hook; call sites only
// ever inspect these to pick a message.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
)

// Error is a non-2xx response decoded into something printable. Status is
// the HTTP status code; Message is whatever the server said.
type Error struct {
	Status  int
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Op, e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	switch e.Status {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 422, 400:
		return ErrValidation
	}
	return nil
}

// IsRetryableRead reports whether a read that failed with err may be
// retried without side effects. Auth and validation failures are not: the
// former clears the session and the latter will fail identically.
func IsRetryableRead(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}
