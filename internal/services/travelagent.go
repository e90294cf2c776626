package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TravelAgent is the client of the travel-planning chat service. It posts the user's input and
// hands back the raw streamed response body; decoding the body is the caller's job.
type TravelAgent struct {
	endpoint string

	client *http.Client

	logger *slog.Logger
}

type travelAgentRequest struct {
	Input string `json:"input"`
}

// StatusError is returned when the chat service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

const maxErrorBody = 1 << 10

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// ErrNoBody is returned when a successful response carries no body to stream.
var ErrNoBody = errors.New("no response body received")

// NewTravelAgent creates a TravelAgent posting to endpoint. responseHeaderTimeout bounds the wait
// for the response headers only; once streaming has started, the body may stay open for as long
// as the service keeps writing. Zero disables the bound.
func NewTravelAgent(endpoint string, responseHeaderTimeout time.Duration, logger *slog.Logger) TravelAgent {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = responseHeaderTimeout

	return TravelAgent{
		endpoint: endpoint,
		client:   &http.Client{Transport: transport},
		logger:   logger.With(slog.String("module", "travelagent")),
	}
}

// Chat sends input to the travel agent and returns the streamed response body. The request, and
// every read of the returned body, is bound to ctx: cancelling ctx aborts the exchange. The caller
// must close the body.
func (t TravelAgent) Chat(ctx context.Context, input string) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(travelAgentRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	t.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}

	return resp.Body, nil
}
