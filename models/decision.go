package models

// Routing actions produced by the judge step.
const (
	ActionChat          = "chat"
	ActionRetrieve      = "retrieve"
	ActionSearchFlight  = "search_flight"
	ActionSearchHotel   = "search_hotel"
	ActionSearchGeneral = "search_general"
)

// AgentDecision is the structured routing decision for one turn. It is
// produced exactly once per turn and never mutated afterward.
type AgentDecision struct {
	Action      string   `json:"action"`
	Reason      string   `json:"reason"`
	SearchQuery string   `json:"search_query,omitempty"`
	Confidence  float64  `json:"confidence"`
	Followups   []string `json:"followups,omitempty"`
}

// FallbackDecision is the deterministic default used when the classification
// capability fails. A turn must never abort because classification failed.
func FallbackDecision(reason string) AgentDecision {
	return AgentDecision{
		Action:     ActionChat,
		Reason:     reason,
		Confidence: 0.0,
	}
}

// SearchResult is the opaque structured payload returned by the search
// capability, or an explicit error marker when the search failed.
type SearchResult map[string]any

// SearchErrorMarker builds the marker carried into summarization when the
// search capability fails; summarization still runs against it.
func SearchErrorMarker(query string, err error) SearchResult {
	return SearchResult{"error": err.Error(), "query": query}
}

// PriceQuote is a single flight or hotel offer extracted from search results.
type PriceQuote struct {
	Item     string `json:"item"`
	Price    string `json:"price,omitempty"`
	Currency string `json:"currency,omitempty"`
	URL      string `json:"url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// PriceSummary is the structured pricing summary returned to the user. It is
// always produced when a search branch executes, even under failure.
type PriceSummary struct {
	Reply          string       `json:"reply"`
	KeyPoints      []string     `json:"key_points"`
	PriceQuotes    []PriceQuote `json:"price_quotes"`
	PriceRange     string       `json:"price_range,omitempty"`
	Recommendation string       `json:"recommendation,omitempty"`
	Caution        string       `json:"caution,omitempty"`
}
