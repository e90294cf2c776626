package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/MegaGrindStone/viator-web-ui/internal/models"
)

// Event is one decoded frame of the travel agent's stream. The set of implementations is closed:
// ToolInvoked, TextDelta, FlightResult, ItineraryResult, ToolError and Unknown.
type Event interface {
	event()
}

// ToolInvoked reports that the agent called an auxiliary tool.
type ToolInvoked struct {
	ToolName string
}

// TextDelta is the next slice of the assistant's natural-language reply.
type TextDelta struct {
	Content string
}

// FlightResult carries the outcome of the flight search tool.
type FlightResult struct {
	Message string
	Flights []models.FlightOption
}

// ItineraryResult carries the outcome of the itinerary tool.
type ItineraryResult struct {
	Itinerary models.Itinerary
}

// ToolError reports that a tool invocation failed on the agent's side. It does not end the
// stream.
type ToolError struct {
	Tool string
}

// Unknown is a well-formed frame whose type this client does not understand. Consumers should
// skip it.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (ToolInvoked) event()     {}
func (TextDelta) event()       {}
func (FlightResult) event()    {}
func (ItineraryResult) event() {}
func (ToolError) event()       {}
func (Unknown) event()         {}

var (
	_ Event = ToolInvoked{}
	_ Event = TextDelta{}
	_ Event = FlightResult{}
	_ Event = ItineraryResult{}
	_ Event = ToolError{}
	_ Event = Unknown{}
)

// Frame types understood by Parse.
const (
	TypeTool              = "tool"
	TypeStream            = "stream"
	TypeFlightResponse    = "flight_response"
	TypeItineraryResponse = "itinerary_response"
	TypeError             = "error"
)

type frame struct {
	Type          string          `json:"type"`
	ToolName      *string         `json:"tool_name"`
	Tool          *string         `json:"tool"`
	Content       string          `json:"content"`
	Message       string          `json:"message"`
	FlightsData   json.RawMessage `json:"flights_data"`
	ItineraryData json.RawMessage `json:"itinerary_data"`
}

// Parse decodes one frame's JSON payload into an Event. Every failure is a *DecodeError.
func Parse(text string) (Event, error) {
	ev, err := parse([]byte(text))
	if err != nil {
		return nil, &DecodeError{Frame: text, Err: err}
	}
	return ev, nil
}

func parse(data []byte) (Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotObject
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	switch f.Type {
	case "":
		return nil, ErrMissingType
	case TypeTool:
		if f.ToolName == nil {
			return nil, fmt.Errorf("%w: tool_name", ErrMissingField)
		}
		return ToolInvoked{ToolName: *f.ToolName}, nil
	case TypeStream:
		return TextDelta{Content: f.Content}, nil
	case TypeFlightResponse:
		if isAbsent(f.FlightsData) {
			return nil, fmt.Errorf("%w: flights_data", ErrMissingField)
		}
		var flights []models.FlightOption
		if err := json.Unmarshal(f.FlightsData, &flights); err != nil {
			return nil, fmt.Errorf("flights_data: %w", err)
		}
		if flights == nil {
			flights = []models.FlightOption{}
		}
		return FlightResult{Message: f.Message, Flights: flights}, nil
	case TypeItineraryResponse:
		if isAbsent(f.ItineraryData) {
			return nil, fmt.Errorf("%w: itinerary_data", ErrMissingField)
		}
		itinerary, err := decodeItinerary(f.ItineraryData)
		if err != nil {
			return nil, fmt.Errorf("itinerary_data: %w", err)
		}
		return ItineraryResult{Itinerary: itinerary}, nil
	case TypeError:
		// "tool" is the documented field; the agent itself has been seen sending "tool_name".
		tool := ""
		switch {
		case f.Tool != nil:
			tool = *f.Tool
		case f.ToolName != nil:
			tool = *f.ToolName
		}
		return ToolError{Tool: tool}, nil
	default:
		return Unknown{Type: f.Type, Raw: json.RawMessage(bytes.Clone(data))}, nil
	}
}

// decodeItinerary accepts the itinerary either as an object or as a string holding the
// JSON-encoded object, which is how the agent forwards structured model output.
func decodeItinerary(raw json.RawMessage) (models.Itinerary, error) {
	var it models.Itinerary
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return it, err
		}
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &it); err != nil {
		return it, err
	}
	return it, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
