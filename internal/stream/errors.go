package stream

import (
	"errors"
	"fmt"
)

// Sentinel errors reported while decoding the agent's stream.
var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrTruncated     = errors.New("stream ended inside a frame")
	ErrMissingType   = errors.New("frame has no type")
	ErrNotObject     = errors.New("frame is not a JSON object")
	ErrMissingField  = errors.New("frame is missing a required field")
)

const maxQuotedFrame = 120

// DecodeError reports a frame that could not be turned into an Event. The travel agent is
// expected to only ever send well-formed frames, so a DecodeError fails the whole session.
type DecodeError struct {
	// Frame is the offending frame text. It is empty when the failure happened before a frame
	// could be delimited, e.g. ErrFrameTooLarge.
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Frame == "" {
		return fmt.Sprintf("decode stream: %v", e.Err)
	}
	frame := e.Frame
	if len(frame) > maxQuotedFrame {
		frame = frame[:maxQuotedFrame] + "..."
	}
	return fmt.Sprintf("decode frame %q: %v", frame, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
