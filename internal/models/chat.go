package models

import (
	"slices"
	"time"
)

// Message is a single entry of a conversation transcript. User messages only carry text; assistant
// messages may also carry the tools the backend used while answering and the structured results
// produced by those tools.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// ToolsUsed lists tool names in invocation order. Nil when no tool was invoked.
	ToolsUsed []string `json:"toolsUsed,omitempty"`
	// Flights is nil unless the session received a flight result.
	Flights []FlightOption `json:"flightsData,omitempty"`
	// Itinerary is nil unless the session received an itinerary result.
	Itinerary *Itinerary `json:"itineraryData,omitempty"`

	StreamingState StreamingState `json:"streamingState"`
}

// Role represents the role of a message participant.
type Role string

// StreamingState tells whether a message may still change.
type StreamingState string

const (
	// RoleUser represents a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message assembled from the travel agent's stream.
	RoleAssistant Role = "assistant"

	// StreamingStateStreaming marks the open assistant message of an active session.
	StreamingStateStreaming StreamingState = "streaming"
	// StreamingStateEnded marks a finalized message.
	StreamingStateEnded StreamingState = "ended"
	// StreamingStateInterrupted marks an assistant message whose session was aborted or failed
	// before it could be finalized. Its content is whatever had been streamed so far.
	StreamingStateInterrupted StreamingState = "interrupted"
)

// Open reports whether the message is still being streamed into.
func (m Message) Open() bool {
	return m.StreamingState == StreamingStateStreaming
}

// Clone returns a copy of m whose top-level slices and itinerary pointer are not shared with m.
func (m Message) Clone() Message {
	m.ToolsUsed = slices.Clone(m.ToolsUsed)
	m.Flights = slices.Clone(m.Flights)
	if m.Itinerary != nil {
		it := *m.Itinerary
		m.Itinerary = &it
	}
	return m
}
