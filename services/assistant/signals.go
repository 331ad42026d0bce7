package assistant

import (
	"hellocity/models"
	"hellocity/services/capability"
)

// Signal is an internal per-step event produced while a turn runs. Signals
// are translated into wire events by the streaming layer; the engine itself
// never talks to a transport.
type Signal interface {
	signal()
}

// TokenSignal is one streamed text fragment, tagged with the producing step.
type TokenSignal struct {
	Step  string
	Delta string
}

// DecisionSignal reports the routing decision for the turn.
type DecisionSignal struct {
	Decision models.AgentDecision
}

// SearchSignal reports the raw search payload, or its error marker.
type SearchSignal struct {
	Query   string
	Results models.SearchResult
}

// SummarySignal reports the structured pricing summary.
type SummarySignal struct {
	Summary models.PriceSummary
}

// SupervisorSignal reports review output. Revision, when present, replaces
// the streamed text as the final reply.
type SupervisorSignal struct {
	Feedback string
	Revision string
}

// ModelEndSignal marks completion of the turn's streaming step, carrying any
// tool calls the model requested.
type ModelEndSignal struct {
	Step      string
	ToolCalls []capability.ToolCall
}

// ErrorSignal reports an unrecoverable turn-level failure. The stream ends
// after it.
type ErrorSignal struct {
	Err error
}

func (TokenSignal) signal()      {}
func (DecisionSignal) signal()   {}
func (SearchSignal) signal()     {}
func (SummarySignal) signal()    {}
func (SupervisorSignal) signal() {}
func (ModelEndSignal) signal()   {}
func (ErrorSignal) signal()      {}
