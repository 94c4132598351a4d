package errors

import (
	"fmt"
)

// Common error types
var (
	// Input errors
	ErrAudioNotFound = New("audio file not found")

	// Engine errors
	ErrEngineNotFound      = New("engine not found")
	ErrEngineUnavailable   = New("engine unavailable")
	ErrModelLoadFailed     = New("model load failed")
	ErrTranscriptionFailed = New("transcription failed")
	ErrProtocol            = New("unexpected engine output")

	// Configuration errors
	ErrMissingAPIKey = New("API key is required")
	ErrInvalidConfig = New("invalid configuration")
)

// Error represents a standardized error
type Error struct {
	message string
	cause   error
}

// New creates a new error
func New(message string) *Error {
	return &Error{message: message}
}

// Newf creates a new formatted error
func Newf(format string, args ...interface{}) *Error {
	return &Error{message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		message: message,
		cause:   err,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{
		message: fmt.Sprintf(format, args...),
		cause:   err,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// Is checks if the error matches target
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.message == t.message
}

// Message returns the error text without the cause chain.
func (e *Error) Message() string {
	return e.message
}

// Helper functions for common patterns

// RequiredField returns an error for missing required fields
func RequiredField(field string) error {
	return Newf("%s is required", field)
}

// InvalidField returns an error for invalid field values
func InvalidField(field string, reason string) error {
	return Newf("%s is invalid: %s", field, reason)
}

// NotFound returns an error for items that were not found
func NotFound(itemType string, identifier string) error {
	return Newf("%s not found: %s", itemType, identifier)
}

// Mark attaches a sentinel kind to err without changing its text, so that
// errors.Is(err, kind) holds and the caller still sees the original message.
func Mark(err error, kind *Error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, kind: kind}
}

type marked struct {
	err  error
	kind *Error
}

func (m *marked) Error() string { return m.err.Error() }

func (m *marked) Unwrap() []error { return []error{m.err, m.kind} }

// AudioNotFound reports a missing input file. The text is part of the output
// contract.
func AudioNotFound(path string) error {
	return Mark(fmt.Errorf("Audio file not found: %s", path), ErrAudioNotFound)
}

// Unavailable marks err as an engine availability failure.
func Unavailable(err error) error {
	return Mark(err, ErrEngineUnavailable)
}
