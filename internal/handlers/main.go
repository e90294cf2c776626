package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	viatorwebui "github.com/MegaGrindStone/viator-web-ui"
	"github.com/MegaGrindStone/viator-web-ui/internal/models"
	"github.com/MegaGrindStone/viator-web-ui/internal/session"
	"github.com/tmaxmax/go-sse"
)

// Renderer turns an assistant reply written in markdown into HTML.
type Renderer interface {
	Render(source string) (template.HTML, error)
}

// Config tunes the conversations served by Main.
type Config struct {
	Session session.Options

	// IdleTimeout is how long a conversation without activity is kept in memory. Zero keeps
	// conversations until shutdown.
	IdleTimeout time.Duration
	// SweepInterval is how often idle conversations are looked for.
	SweepInterval time.Duration
}

// Main serves the travel chat in the browser. Each browser conversation gets its own transcript
// and session controller; transcript changes are pushed to the page over server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	renderer  Renderer

	agent session.ChatService
	cfg   Config
	chats *chats

	// ctx bounds every session started by Main; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

const errLoggerKey = "err"

// SSE event types for real-time updates.
var (
	messageSSEType = sse.Type("message")
	statusSSEType  = sse.Type("status")
	closeSSEType   = sse.Type("closeChat")
)

// NewMain creates a new Main talking to agent. It parses the HTML templates from the embedded
// filesystem and configures the SSE server so that every browser subscribes to the topic of the
// conversation it displays.
func NewMain(agent session.ChatService, renderer Renderer, cfg Config, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(
		viatorwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				conversationID := s.Req.URL.Query().Get("conversation_id")
				if conversationID == "" {
					return sse.Subscription{}, false
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, conversationTopic(conversationID)},
				}, true
			},
		},
		templates: tmpl,
		renderer:  renderer,
		agent:     agent,
		cfg:       cfg,
		chats:     newChats(),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("module", "main")),
	}, nil
}

func conversationTopic(conversationID string) string {
	return fmt.Sprintf("conversation-%s", conversationID)
}

// HandleSSE streams the updates of the conversation named by the conversation_id query parameter.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}
	if _, ok := m.chats.get(conversationID); !ok {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	m.sseSrv.ServeHTTP(w, r)
}

// Run evicts idle conversations until ctx is done. It returns immediately when eviction is
// disabled.
func (m Main) Run(ctx context.Context) {
	if m.cfg.IdleTimeout <= 0 || m.cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.chats.evictIdle(now, m.cfg.IdleTimeout); n > 0 {
				m.logger.Info("Evicted idle chats", slog.Int("count", n))
			}
		}
	}
}

// Shutdown gracefully terminates Main. It aborts every session in flight, broadcasts a close
// message to all connected clients and waits up to 5 seconds for connections to terminate. After
// the timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.cancel()

	e := &sse.Message{Type: closeSSEType}
	// SSE clients drop events without data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

var templateFuncs = template.FuncMap{
	"duration": formatDuration,
	"price":    formatPrice,
	"isUser": func(role models.Role) bool {
		return role == models.RoleUser
	},
	"firstLeg": func(o models.FlightOption) models.Flight {
		if len(o.Flights) == 0 {
			return models.Flight{}
		}
		return o.Flights[0]
	},
	"lastLeg": func(o models.FlightOption) models.Flight {
		if len(o.Flights) == 0 {
			return models.Flight{}
		}
		return o.Flights[len(o.Flights)-1]
	},
}

// formatDuration renders a duration given in minutes, e.g. 125 as "2h 5m".
func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func formatPrice(price float64) string {
	if price == float64(int64(price)) {
		return fmt.Sprintf("$%d", int64(price))
	}
	return fmt.Sprintf("$%.2f", price)
}
