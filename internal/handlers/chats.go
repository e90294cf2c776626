package handlers

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/MegaGrindStone/viator-web-ui/internal/session"
)

// chat is one browser conversation kept in memory.
type chat struct {
	id         string
	controller *session.Controller

	// unsubscribe detaches the transcript from the SSE publisher.
	unsubscribe func()
	// sending is set while a message of this chat is being sent.
	sending atomic.Bool

	mu         sync.Mutex
	lastActive time.Time
}

func (c *chat) touch(now time.Time) {
	c.mu.Lock()
	c.lastActive = now
	c.mu.Unlock()
}

func (c *chat) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActive)
}

type chats struct {
	mu    sync.RWMutex
	byID  map[string]*chat
	nowFn func() time.Time
}

func newChats() *chats {
	return &chats{
		byID:  make(map[string]*chat),
		nowFn: time.Now,
	}
}

func (cs *chats) get(id string) (*chat, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.byID[id]
	if ok {
		c.touch(cs.nowFn())
	}
	return c, ok
}

func (cs *chats) add(c *chat) {
	c.touch(cs.nowFn())

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.byID[c.id] = c
}

// evictIdle drops chats that have been idle for longer than idle and have no message in flight.
// It returns the number of chats dropped.
func (cs *chats) evictIdle(now time.Time, idle time.Duration) int {
	cs.mu.Lock()
	var evicted []*chat
	for id, c := range cs.byID {
		if c.sending.Load() || c.idleSince(now) < idle {
			continue
		}
		delete(cs.byID, id)
		evicted = append(evicted, c)
	}
	cs.mu.Unlock()

	for _, c := range evicted {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
	}
	return len(evicted)
}
