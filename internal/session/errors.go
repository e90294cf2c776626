package session

import (
	"errors"
	"fmt"

	"github.com/MegaGrindStone/viator-web-ui/internal/stream"
)

var (
	// ErrEmptyInput is returned by Send for blank input. No request is made.
	ErrEmptyInput = errors.New("message is empty")
	// ErrAborted is the cancellation cause recorded by Cancel.
	ErrAborted = errors.New("stream aborted")
)

// TransportError reports that the exchange with the travel agent failed: the request could not be
// sent, the agent answered with a non-2xx status, or the connection broke while streaming.
type TransportError struct {
	// StatusCode is the HTTP status of a rejected request, zero otherwise.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AbortError reports that the session was cancelled before the stream ended.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	if e.Cause == nil || errors.Is(e.Cause, ErrAborted) {
		return ErrAborted.Error()
	}
	return fmt.Sprintf("%v: %v", ErrAborted, e.Cause)
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// UserInitiated reports whether the abort came from Controller.Cancel rather than from the
// caller's context.
func (e *AbortError) UserInitiated() bool {
	return errors.Is(e.Cause, ErrAborted)
}

// Describe turns a terminal session error into the text shown to the user.
func Describe(err error) string {
	var (
		abortErr     *AbortError
		decodeErr    *stream.DecodeError
		transportErr *TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Please enter a message."
	case errors.As(err, &abortErr):
		return "Stream aborted."
	case errors.As(err, &decodeErr):
		return "The travel agent sent a response that could not be read."
	case errors.As(err, &transportErr):
		if transportErr.StatusCode != 0 {
			return fmt.Sprintf("Server returned %d", transportErr.StatusCode)
		}
		return transportErr.Err.Error()
	default:
		return "An unexpected error occurred."
	}
}

// ToolWarning is the text shown to the user when a tool fails on the agent's side.
func ToolWarning(tool string) string {
	return "Error from tool: " + tool
}
