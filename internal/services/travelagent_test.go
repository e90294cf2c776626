package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/viator-web-ui/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTravelAgentChat(t *testing.T) {
	var gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Input string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotInput = req.Input

		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, `{"type":"stream","content":"Hi"}[END]`)
	}))
	defer srv.Close()

	agent := services.NewTravelAgent(srv.URL, time.Second, discardLogger())

	body, err := agent.Chat(context.Background(), "Find flights to Paris")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"stream","content":"Hi"}[END]`, string(data))
	assert.Equal(t, "Find flights to Paris", gotInput)
}

func TestTravelAgentChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, strings.Repeat("e", 4096), http.StatusBadGateway)
	}))
	defer srv.Close()

	agent := services.NewTravelAgent(srv.URL, time.Second, discardLogger())

	body, err := agent.Chat(context.Background(), "hi")
	assert.Nil(t, body)

	var statusErr *services.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Len(t, statusErr.Body, 1024)
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "server returned 500", (&services.StatusError{StatusCode: 500}).Error())
	assert.Equal(t, "server returned 503: busy", (&services.StatusError{StatusCode: 503, Body: "busy"}).Error())
}

func TestTravelAgentChatUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	agent := services.NewTravelAgent(url, time.Second, discardLogger())

	_, err := agent.Chat(context.Background(), "hi")
	require.Error(t, err)

	var statusErr *services.StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestTravelAgentChatCancelStopsBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"type":"stream","content":"Hel"}[END]`)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	agent := services.NewTravelAgent(srv.URL, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	body, err := agent.Chat(ctx, "hi")
	require.NoError(t, err)
	defer body.Close()

	first := `{"type":"stream","content":"Hel"}[END]`
	buf := make([]byte, len(first))
	_, err = io.ReadFull(body, buf)
	require.NoError(t, err)
	assert.Equal(t, first, string(buf))

	cancel()

	_, err = io.ReadAll(body)
	assert.Error(t, err)
}
