package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/viator-web-ui/internal/conversation"
	"github.com/MegaGrindStone/viator-web-ui/internal/models"
	"github.com/MegaGrindStone/viator-web-ui/internal/session"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

type message struct {
	ID        string
	Role      models.Role
	Timestamp time.Time

	// Content is the user's text; assistant replies are rendered into HTML instead.
	Content   string
	HTML      template.HTML
	ToolsUsed []string
	Flights   []models.FlightOption
	Itinerary *models.Itinerary

	StreamingState models.StreamingState
}

type messageEvent struct {
	ID             string                `json:"id"`
	Index          int                   `json:"index"`
	StreamingState models.StreamingState `json:"streamingState"`
	HTML           string                `json:"html"`
}

type statusEvent struct {
	Busy    bool   `json:"busy"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
	Aborted bool   `json:"aborted,omitempty"`
}

type chatResponse struct {
	ConversationID string `json:"conversationId"`
}

// chatNotifier forwards session notices of one chat to its SSE topic.
type chatNotifier struct {
	main   Main
	chatID string
}

func (n chatNotifier) ToolFailed(_, tool string) {
	n.main.publishStatus(n.chatID, statusEvent{
		Busy:    true,
		Warning: session.ToolWarning(tool),
	})
}

// HandleChats accepts a user message through HTTP POST and starts streaming the travel agent's
// answer in the background.
//
// The handler expects a "message" form field and an optional "conversation_id" field. If no
// conversation_id is provided, it creates a new conversation. The transcript, including the user's
// own message, reaches the page through the conversation's SSE topic; the response only names the
// conversation.
//
// A blank message is rejected with 400, an unknown conversation with 404 and a conversation that
// is still streaming its previous answer with 409.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := strings.TrimSpace(r.FormValue("message"))
	if msg == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	var c *chat
	chatID := r.FormValue("conversation_id")
	if chatID == "" {
		c = m.newChat()
	} else {
		var ok bool
		c, ok = m.chats.get(chatID)
		if !ok {
			m.logger.Error("Conversation not found", slog.String("conversationID", chatID))
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
	}

	if !c.sending.CompareAndSwap(false, true) {
		http.Error(w, "A message is already being answered", http.StatusConflict)
		return
	}

	go m.send(c, msg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(chatResponse{ConversationID: c.id}); err != nil {
		m.logger.Error("Failed to write response", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleStop aborts the answer being streamed for the conversation named by the
// "conversation_id" form field. It responds 202 when a stream was aborted and 204 when there was
// nothing to abort.
func (m Main) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, ok := m.chats.get(r.FormValue("conversation_id"))
	if !ok {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	if !c.controller.Cancel() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (m Main) newChat() *chat {
	c := &chat{
		id: uuid.New().String(),
	}

	transcript := conversation.NewTranscript()
	c.unsubscribe = transcript.Subscribe(func(u conversation.Update) {
		m.publishMessage(c.id, u)
	})
	c.controller = session.NewController(
		m.agent,
		transcript,
		chatNotifier{main: m, chatID: c.id},
		m.cfg.Session,
		m.logger.With(slog.String("conversationID", c.id)),
	)

	m.chats.add(c)
	return c
}

func (m Main) send(c *chat, msg string) {
	defer c.sending.Store(false)

	m.publishStatus(c.id, statusEvent{Busy: true})

	err := c.controller.Send(m.ctx, msg)

	status := statusEvent{Error: session.Describe(err)}
	var abortErr *session.AbortError
	if errors.As(err, &abortErr) {
		status.Aborted = true
	}
	m.publishStatus(c.id, status)
}

func (m Main) toMessage(msg models.Message) (message, error) {
	res := message{
		ID:             msg.ID,
		Role:           msg.Role,
		Timestamp:      msg.Timestamp,
		ToolsUsed:      msg.ToolsUsed,
		Flights:        msg.Flights,
		Itinerary:      msg.Itinerary,
		StreamingState: msg.StreamingState,
	}
	if msg.Role == models.RoleUser {
		res.Content = msg.Content
		return res, nil
	}

	html, err := m.renderer.Render(msg.Content)
	if err != nil {
		return message{}, fmt.Errorf("failed to render message %s: %w", msg.ID, err)
	}
	res.HTML = html
	return res, nil
}

func (m Main) publishMessage(chatID string, u conversation.Update) {
	msg, err := m.toMessage(u.Message)
	if err != nil {
		m.logger.Error("Failed to prepare message", slog.String(errLoggerKey, err.Error()))
		return
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "message", msg); err != nil {
		m.logger.Error("Failed to execute message template",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	m.publish(chatID, messageSSEType, messageEvent{
		ID:             msg.ID,
		Index:          u.Index,
		StreamingState: msg.StreamingState,
		HTML:           sb.String(),
	})
}

func (m Main) publishStatus(chatID string, status statusEvent) {
	m.publish(chatID, statusSSEType, status)
}

func (m Main) publish(chatID string, typ sse.EventType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("Failed to marshal event", slog.String(errLoggerKey, err.Error()))
		return
	}

	e := sse.Message{
		Type: typ,
	}
	e.AppendData(string(data))
	if err := m.sseSrv.Publish(&e, conversationTopic(chatID)); err != nil {
		m.logger.Error("Failed to publish event",
			slog.String("conversationID", chatID),
			slog.String(errLoggerKey, err.Error()))
	}
}
