package handlers

import (
	"testing"
	"time"
)

func TestChatsEvictIdle(t *testing.T) {
	start := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	now := start

	cs := newChats()
	cs.nowFn = func() time.Time { return now }

	var unsubscribed []string
	newTestChat := func(id string) *chat {
		c := &chat{id: id}
		c.unsubscribe = func() { unsubscribed = append(unsubscribed, id) }
		cs.add(c)
		return c
	}

	newTestChat("idle")
	busy := newTestChat("busy")
	busy.sending.Store(true)
	newTestChat("recent")

	now = start.Add(20 * time.Minute)
	if _, ok := cs.get("recent"); !ok {
		t.Fatal("get(recent) should find the chat")
	}

	if n := cs.evictIdle(start.Add(40*time.Minute), 30*time.Minute); n != 1 {
		t.Errorf("evictIdle() = %d, want 1", n)
	}

	if _, ok := cs.get("idle"); ok {
		t.Error("idle chat should have been evicted")
	}
	for _, id := range []string{"busy", "recent"} {
		if _, ok := cs.get(id); !ok {
			t.Errorf("chat %s should have been kept", id)
		}
	}
	if len(unsubscribed) != 1 || unsubscribed[0] != "idle" {
		t.Errorf("unsubscribed = %v, want [idle]", unsubscribed)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{minutes: 45, want: "45m"},
		{minutes: 60, want: "1h"},
		{minutes: 125, want: "2h 5m"},
		{minutes: 430, want: "7h 10m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.minutes); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{price: 812, want: "$812"},
		{price: 99.5, want: "$99.50"},
		{price: 0, want: "$0"},
	}

	for _, tt := range tests {
		if got := formatPrice(tt.price); got != tt.want {
			t.Errorf("formatPrice(%v) = %q, want %q", tt.price, got, tt.want)
		}
	}
}
