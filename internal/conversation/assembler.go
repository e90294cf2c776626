package conversation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MegaGrindStone/viator-web-ui/internal/models"
	"github.com/MegaGrindStone/viator-web-ui/internal/stream"
)

// AssemblerOptions tunes how events are folded into the transcript.
type AssemblerOptions struct {
	// ToolMarkers appends a "Using tool: <name>" line to the reply text for each tool invocation.
	ToolMarkers bool
	// OnToolError is called for every ToolError event. The session is not affected.
	OnToolError func(tool string)
}

// Assembler folds the events of one session into its transcript. It owns the session's
// accumulators (reply text, tools used, last flight and itinerary results) and is the only writer
// of the session's assistant message.
//
// An Assembler must be used for a single session and is not safe for concurrent use.
type Assembler struct {
	transcript *Transcript
	opts       AssemblerOptions

	text      strings.Builder
	tools     []string
	flights   []models.FlightOption
	itinerary *models.Itinerary

	finalized bool
	final     models.Message
}

// NewAssembler returns an Assembler writing into t.
func NewAssembler(t *Transcript, opts AssemblerOptions) *Assembler {
	return &Assembler{
		transcript: t,
		opts:       opts,
	}
}

// Apply folds ev into the session state. Only TextDelta events update the transcript; the other
// events are held in the accumulators until Finalize. Unknown events are ignored.
func (a *Assembler) Apply(ev stream.Event) {
	if a.finalized {
		return
	}

	switch ev := ev.(type) {
	case stream.ToolInvoked:
		a.tools = append(a.tools, ev.ToolName)
		if a.opts.ToolMarkers {
			fmt.Fprintf(&a.text, "\nUsing tool: %s\n", ev.ToolName)
		}
	case stream.TextDelta:
		a.text.WriteString(ev.Content)
		a.transcript.UpsertAssistant(models.Message{
			Content:        a.text.String(),
			StreamingState: models.StreamingStateStreaming,
		})
	case stream.FlightResult:
		a.text.WriteString("\n" + ev.Message + "\n")
		a.flights = ev.Flights
	case stream.ItineraryResult:
		it := ev.Itinerary
		a.itinerary = &it
	case stream.ToolError:
		if a.opts.OnToolError != nil {
			a.opts.OnToolError(ev.Tool)
		}
	case stream.Unknown:
	}
}

// Text returns the reply text accumulated so far, untrimmed.
func (a *Assembler) Text() string {
	return a.text.String()
}

// Finalize writes the session's assistant message in its final form and returns it. Optional
// parts that were never received are left unset. Later calls return the same message without
// touching the transcript again.
func (a *Assembler) Finalize() models.Message {
	if a.finalized {
		return a.final.Clone()
	}

	msg := models.Message{
		Content:        strings.TrimSpace(a.text.String()),
		StreamingState: models.StreamingStateEnded,
	}
	if len(a.tools) > 0 {
		msg.ToolsUsed = slices.Clone(a.tools)
	}
	if a.flights != nil {
		msg.Flights = a.flights
	}
	if a.itinerary != nil {
		msg.Itinerary = a.itinerary
	}

	a.finalized = true
	a.final = a.transcript.UpsertAssistant(msg)
	return a.final.Clone()
}
