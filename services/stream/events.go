// Package stream translates the engine's internal signals into the typed
// wire events the client consumes, framed as Server-Sent Events.
package stream

import "encoding/json"

// Wire event types.
const (
	EventTextDelta          = "text-delta"
	EventTextComplete       = "text-complete"
	EventAgentDecision      = "agent-decision"
	EventSearchResults      = "search-results"
	EventPriceSummary       = "price-summary"
	EventSupervisorFeedback = "supervisor-feedback"
	EventTaskID             = "task-id"
	EventChecklistPending   = "data-checklist-pending"
	EventChecklistBanner    = "data-checklist-banner"
	EventChecklist          = "data-checklist"
	EventChecklistError     = "data-checklist-error"
	EventError              = "error"
)

// Event is one typed wire event. Only the fields relevant to a given type
// are set.
type Event struct {
	Type    string `json:"type"`
	Delta   string `json:"delta,omitempty"`
	Content string `json:"content,omitempty"`
	TaskID  string `json:"taskId,omitempty"`
	Status  string `json:"status,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Frame renders the event as an SSE frame.
func (e Event) Frame() string {
	b, err := json.Marshal(e)
	if err != nil {
		b = []byte(`{"type":"error","error":"unencodable event"}`)
	}
	return "data: " + string(b) + "\n\n"
}
