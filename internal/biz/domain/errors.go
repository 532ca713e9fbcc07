package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedModel is returned for model identifiers without a token table entry
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrReservedName is returned when a context name collides with a directive keyword
	ErrReservedName = errors.New("name is reserved")
	// ErrPermissionDenied is returned when the caller may not modify contexts
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument is returned for malformed commands
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPromptTooLarge is returned when the fixed part of a prompt exceeds the model budget
	ErrPromptTooLarge = errors.New("prompt exceeds model budget")
)

// TransportError reports a completion request that failed before the model
// produced a usable answer: network failure, timeout, throttling or a
// server-side error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ModelError reports a completion request rejected by the service or an
// answer without choices.
type ModelError struct {
	Model      string
	StatusCode int
	Message    string
}

func (e *ModelError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model %s: status %d: %s", e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model %s: %s", e.Model, e.Message)
}
