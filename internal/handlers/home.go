package handlers

import (
	"log/slog"
	"net/http"
)

type homePageData struct {
	ConversationID string
	Messages       []message
	Busy           bool
}

// HandleHome renders the chat page. With a known conversation_id query parameter the page shows
// that conversation's transcript; otherwise a new, empty conversation is started.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, ok := m.chats.get(r.URL.Query().Get("conversation_id"))
	if !ok {
		c = m.newChat()
	}

	transcript := c.controller.Transcript().Messages()
	msgs := make([]message, len(transcript))
	for i, tm := range transcript {
		msg, err := m.toMessage(tm)
		if err != nil {
			m.logger.Error("Failed to prepare message", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		msgs[i] = msg
	}

	data := homePageData{
		ConversationID: c.id,
		Messages:       msgs,
		Busy:           c.sending.Load(),
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
