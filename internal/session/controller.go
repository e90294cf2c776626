package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/viator-web-ui/internal/conversation"
	"github.com/MegaGrindStone/viator-web-ui/internal/services"
	"github.com/MegaGrindStone/viator-web-ui/internal/stream"
	"github.com/google/uuid"
)

// ChatService issues the request to the travel agent and returns its streamed body. Cancelling
// ctx must abort the request and any pending body read.
type ChatService interface {
	Chat(ctx context.Context, input string) (io.ReadCloser, error)
}

// Notifier receives the non-fatal notices of a session while it streams.
type Notifier interface {
	ToolFailed(sessionID, tool string)
}

// Options configures how a Controller decodes and assembles streams.
type Options struct {
	MaxFrameSize int
	StrictEOF    bool
	ToolMarkers  bool
}

// Controller drives one conversation: it turns user input into requests to the travel agent and
// folds the streamed answers into the conversation's transcript, one session at a time.
type Controller struct {
	svc        ChatService
	transcript *conversation.Transcript
	notifier   Notifier
	opts       Options

	mu     sync.Mutex
	active *activeSession

	logger *slog.Logger
}

type activeSession struct {
	id     string
	cancel context.CancelCauseFunc
}

const errLoggerKey = "err"

// NewController creates a Controller writing into transcript. notifier may be nil.
func NewController(
	svc ChatService,
	transcript *conversation.Transcript,
	notifier Notifier,
	opts Options,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		svc:        svc,
		transcript: transcript,
		notifier:   notifier,
		opts:       opts,
		logger:     logger.With(slog.String("module", "session")),
	}
}

// Transcript returns the transcript the controller writes into.
func (c *Controller) Transcript() *conversation.Transcript {
	return c.transcript
}

// Busy reports whether a session is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Send appends text as a user message and streams the travel agent's answer into the transcript.
// It blocks until the stream ends, fails or is cancelled. The returned error is nil on success,
// ErrEmptyInput for blank text (no request is made), *TransportError, *AbortError or
// *stream.DecodeError. On failure the transcript keeps whatever had been assembled.
//
// Only one Send should run at a time; a new one replaces the controller's reference to the one in
// flight without cancelling it.
func (c *Controller) Send(ctx context.Context, text string) error {
	input := strings.TrimSpace(text)
	if input == "" {
		return ErrEmptyInput
	}

	if _, err := c.transcript.AppendUser(input); err != nil {
		return fmt.Errorf("error adding user message: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	s := &activeSession{
		id:     uuid.New().String(),
		cancel: cancel,
	}

	c.mu.Lock()
	c.active = s
	c.mu.Unlock()

	logger := c.logger.With(slog.String("session", s.id))
	logger.Debug("Session started", slog.Int("inputLength", len(input)))

	err := c.run(ctx, s, input, logger)
	c.settle(s, err, logger)
	return err
}

// Cancel aborts the session in flight, if any. Frames not yet applied are dropped; the transcript
// is left as it is. Cancel reports whether there was a session to abort.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()

	if s == nil {
		return false
	}
	s.cancel(ErrAborted)
	return true
}

func (c *Controller) run(ctx context.Context, s *activeSession, input string, logger *slog.Logger) error {
	body, err := c.svc.Chat(ctx, input)
	if err != nil {
		return classify(ctx, err)
	}
	defer body.Close()

	// Unblock a pending read as soon as the session is cancelled, whatever the body is.
	stop := context.AfterFunc(ctx, func() {
		_ = body.Close()
	})
	defer stop()

	asm := conversation.NewAssembler(c.transcript, conversation.AssemblerOptions{
		ToolMarkers: c.opts.ToolMarkers,
		OnToolError: func(tool string) {
			logger.Warn("Tool failed", slog.String("tool", tool))
			if c.notifier != nil {
				c.notifier.ToolFailed(s.id, tool)
			}
		},
	})

	dec := &stream.Decoder{
		MaxFrameSize: c.opts.MaxFrameSize,
		Strict:       c.opts.StrictEOF,
	}
	for frame, err := range dec.Frames(body) {
		if ctx.Err() != nil {
			return classify(ctx, ctx.Err())
		}
		if err != nil {
			if errors.Is(err, stream.ErrFrameTooLarge) || errors.Is(err, stream.ErrTruncated) {
				return &stream.DecodeError{Err: err}
			}
			return classify(ctx, err)
		}

		ev, err := stream.Parse(frame)
		if err != nil {
			return err
		}
		logger.Debug("Received event", slog.String("event", fmt.Sprintf("%T", ev)))
		if u, ok := ev.(stream.Unknown); ok {
			logger.Debug("Ignoring unknown event", slog.String("type", u.Type))
		}
		asm.Apply(ev)
	}
	if ctx.Err() != nil {
		return classify(ctx, ctx.Err())
	}

	asm.Finalize()
	return nil
}

func (c *Controller) settle(s *activeSession, err error, logger *slog.Logger) {
	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()
	s.cancel(nil)

	if err != nil {
		c.transcript.Interrupt()

		var abortErr *AbortError
		if errors.As(err, &abortErr) {
			logger.Info("Session aborted", slog.Bool("userInitiated", abortErr.UserInitiated()))
		} else {
			logger.Error("Session failed", slog.String(errLoggerKey, err.Error()))
		}
	} else {
		logger.Debug("Session finished")
	}
}

// classify maps a failure of the exchange to AbortError or TransportError. A cancelled session
// context wins over whatever error the cancellation caused downstream.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		if errors.Is(cause, context.DeadlineExceeded) {
			return &TransportError{Err: cause}
		}
		return &AbortError{Cause: cause}
	}

	te := &TransportError{Err: err}
	var statusErr *services.StatusError
	if errors.As(err, &statusErr) {
		te.StatusCode = statusErr.StatusCode
	}
	return te
}
