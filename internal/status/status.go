package status

import (
	"errors"
	"fmt"
)

// Kind classifies a failed core operation so callers can match exhaustively
// instead of parsing sentinel tuples.
type Kind int

const (
	OK Kind = iota
	PermissionDenied
	NotAuthenticated
	NameConflict
	ValidationFailure
	ExtractionFailure
	StaleState
	NotFound
	Conflict
	Internal
)

var kindNames = map[Kind]string{
	OK:                "ok",
	PermissionDenied:  "permission denied",
	NotAuthenticated:  "not authenticated",
	NameConflict:      "name conflict",
	ValidationFailure: "validation failure",
	ExtractionFailure: "extraction failure",
	StaleState:        "stale state",
	NotFound:          "not found",
	Conflict:          "conflict",
	Internal:          "internal error",
}

// String returns the lowercase label for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Status is the tagged result every fallible core operation returns. A zero
// Status is a success with no message.
type Status struct {
	Kind    Kind
	Message string
	cause   error
}

// Success is the canonical success status.
var Success = Status{Kind: OK, Message: "Success"}

// Fail builds a failure status with a formatted message.
func Fail(kind Kind, format string, args ...any) Status {
	return Status{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a failure status that keeps the underlying error reachable via
// Unwrap for errors.Is/As matching.
func Wrap(kind Kind, err error, format string, args ...any) Status {
	return Status{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// OK reports whether the operation succeeded.
func (s Status) OK() bool {
	return s.Kind == OK
}

// Code returns the legacy sentinel pair value: 1 on success, -1 on failure.
// UI-facing surfaces render alerts from this without inspecting error types.
func (s Status) Code() int {
	if s.OK() {
		return 1
	}
	return -1
}

// Error implements the error interface for failed statuses. Successful
// statuses return an empty string and should never be treated as errors.
func (s Status) Error() string {
	if s.OK() {
		return ""
	}
	if s.Message == "" {
		return s.Kind.String()
	}
	return s.Message
}

// Unwrap exposes the wrapped cause, if any.
func (s Status) Unwrap() error {
	return s.cause
}

// Err returns nil for success and the status itself otherwise, for call sites
// that want plain error plumbing.
func (s Status) Err() error {
	if s.OK() {
		return nil
	}
	return s
}

// Is matches a status against another status by kind, so callers can use
// errors.Is(st, status.Fail(status.NotFound, "")) style checks.
func (s Status) Is(target error) bool {
	var other Status
	if errors.As(target, &other) {
		return s.Kind == other.Kind
	}
	return false
}
