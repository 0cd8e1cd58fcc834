package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind tags a provider failure so callers branch on structure, not on
// error text.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrTimeout
	ErrRateLimit
	ErrAuth
)

type APIError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient (timeout or rate limit).
func (e *APIError) Retryable() bool {
	return e.Kind == ErrTimeout || e.Kind == ErrRateLimit
}

func KindOf(err error) ErrorKind {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ErrUnknown
}

func classify(provider string, statusCode int, err error) *APIError {
	kind := ErrUnknown
	switch {
	case statusCode == 429:
		kind = ErrRateLimit
	case statusCode == 401 || statusCode == 403:
		kind = ErrAuth
	case statusCode == 408 || statusCode == 504:
		kind = ErrTimeout
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	default:
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			kind = ErrTimeout
		}
	}
	return &APIError{Provider: provider, Kind: kind, Err: err}
}
