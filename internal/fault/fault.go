// Package fault carries the pipeline's error taxonomy: every backend adapter
// tags its failures with a kind, a severity, and a retryability flag so the
// orchestrator dispatches structurally instead of matching error text.
package fault

import (
	"errors"
	"fmt"
)

type Severity int

const (
	// SeverityFatal aborts the whole job.
	SeverityFatal Severity = iota
	// SeverityDegradable leaves the artifact missing and the job continues.
	SeverityDegradable
)

type Kind string

const (
	KindExtraction Kind = "extraction"
	KindEmbedding  Kind = "embedding"
	KindIndex      Kind = "index"
	KindScript     Kind = "script_generation"
	KindSpeech     Kind = "speech_synthesis"
	KindMixing     Kind = "mixing"
	KindImage      Kind = "image_generation"
	KindResource   Kind = "resource_exhaustion"
)

type Error struct {
	Kind      Kind
	Severity  Severity
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Fatal(kind Kind, err error) *Error {
	return &Error{Kind: kind, Severity: SeverityFatal, Err: err}
}

func Fatalf(kind Kind, format string, args ...interface{}) *Error {
	return Fatal(kind, fmt.Errorf(format, args...))
}

func Degradable(kind Kind, err error) *Error {
	return &Error{Kind: kind, Severity: SeverityDegradable, Err: err}
}

func Degradablef(kind Kind, format string, args ...interface{}) *Error {
	return Degradable(kind, fmt.Errorf(format, args...))
}

// Transient marks an error as worth retrying (timeouts, rate limits).
func Transient(kind Kind, err error) *Error {
	return &Error{Kind: kind, Severity: SeverityDegradable, Retryable: true, Err: err}
}

// IsFatal reports whether err carries fatal severity. Untagged errors default
// to fatal: an unknown failure must not be silently degraded.
func IsFatal(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Severity == SeverityFatal
	}
	return true
}

func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
