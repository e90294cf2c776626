package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/MegaGrindStone/viator-web-ui/internal/models"
	"github.com/google/uuid"
)

// ErrOpenMessage is returned when a message would be appended behind the open assistant message.
var ErrOpenMessage = errors.New("transcript has an open assistant message")

// Transcript is the ordered, append-only history of one conversation. Entries are never removed
// or reordered; the only entry that may change is the open assistant message, which is always the
// tail.
//
// A Transcript is safe for concurrent use. Subscribers are notified synchronously, in mutation
// order, while the transcript's lock is held, so they must not call back into the Transcript.
type Transcript struct {
	mu       sync.RWMutex
	messages []models.Message

	subs   map[int]func(Update)
	nextID int

	now func() time.Time
}

// Update describes one mutation of a Transcript.
type Update struct {
	// Index is the position of the mutated entry.
	Index int
	// Replaced is true when an existing entry was overwritten in place.
	Replaced bool
	Message  models.Message
}

// NewTranscript creates an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		subs: make(map[int]func(Update)),
		now:  time.Now,
	}
}

// Messages returns a snapshot of the transcript.
func (t *Transcript) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	msgs := make([]models.Message, len(t.messages))
	for i, msg := range t.messages {
		msgs[i] = msg.Clone()
	}
	return msgs
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Tail returns the last entry, or false when the transcript is empty.
func (t *Transcript) Tail() (models.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return models.Message{}, false
	}
	return t.messages[len(t.messages)-1].Clone(), true
}

// AppendUser appends a finalized user message and returns it.
func (t *Transcript) AppendUser(content string) (models.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasOpenTail() {
		return models.Message{}, ErrOpenMessage
	}

	msg := models.Message{
		ID:             uuid.New().String(),
		Role:           models.RoleUser,
		Content:        content,
		Timestamp:      t.now(),
		StreamingState: models.StreamingStateEnded,
	}
	t.messages = append(t.messages, msg)
	t.notify(Update{Index: len(t.messages) - 1, Message: msg})
	return msg, nil
}

// UpsertAssistant writes msg as the assistant's reply to the current turn. If the tail entry is an
// assistant message it is replaced in place, keeping its ID and timestamp; otherwise msg is
// appended. This keeps exactly one assistant message per user turn no matter how often it is
// called.
func (t *Transcript) UpsertAssistant(msg models.Message) models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg = msg.Clone()
	msg.Role = models.RoleAssistant

	if n := len(t.messages); n > 0 && t.messages[n-1].Role == models.RoleAssistant {
		prev := t.messages[n-1]
		msg.ID = prev.ID
		msg.Timestamp = prev.Timestamp
		t.messages[n-1] = msg
		t.notify(Update{Index: n - 1, Replaced: true, Message: msg})
		return msg.Clone()
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = t.now()
	}
	t.messages = append(t.messages, msg)
	t.notify(Update{Index: len(t.messages) - 1, Message: msg})
	return msg.Clone()
}

// Interrupt marks an open tail as interrupted, leaving its content untouched. It reports whether
// an open message was found.
func (t *Transcript) Interrupt() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasOpenTail() {
		return false
	}
	n := len(t.messages)
	t.messages[n-1].StreamingState = models.StreamingStateInterrupted
	t.notify(Update{Index: n - 1, Replaced: true, Message: t.messages[n-1]})
	return true
}

// Subscribe registers fn to be called after every mutation. The returned function removes the
// subscription.
func (t *Transcript) Subscribe(fn func(Update)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

func (t *Transcript) hasOpenTail() bool {
	n := len(t.messages)
	return n > 0 && t.messages[n-1].Open()
}

func (t *Transcript) notify(u Update) {
	for _, fn := range t.subs {
		fn(Update{Index: u.Index, Replaced: u.Replaced, Message: u.Message.Clone()})
	}
}
