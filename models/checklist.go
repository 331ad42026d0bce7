package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexDays tolerates models emitting due_days as a number, a numeric string,
// or garbage. Anything unparseable becomes 0 instead of failing the decode.
type FlexDays int

func (d *FlexDays) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*d = 0
		return nil
	}
	*d = FlexDays(int(f))
	return nil
}

// ChecklistItem is one entry of a generated relocation checklist.
type ChecklistItem struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Importance  string   `json:"importance" validate:"required"`
	DueDays     FlexDays `json:"due_days"`
	Category    string   `json:"category" validate:"required"`
	Order       int      `json:"order"`
}

// CityInfo carries destination city metadata.
type CityInfo struct {
	CityCode string `json:"city_code"`
	CityName string `json:"city_name,omitempty"`
	Country  string `json:"country,omitempty"`
}

// GeneratedChecklist is the draft artifact produced by the authoring
// capability. It must pass validation before being considered final; invalid
// drafts get one repair attempt.
type GeneratedChecklist struct {
	Title       string          `json:"title" validate:"required"`
	Summary     string          `json:"summary" validate:"required"`
	Destination string          `json:"destination" validate:"required"`
	Duration    string          `json:"duration" validate:"required"`
	StayType    string          `json:"stay_type" validate:"required"`
	CityInfo    CityInfo        `json:"city_info"`
	Items       []ChecklistItem `json:"items" validate:"required,min=1,dive"`
}

// ChecklistMetadata is the lighter artifact extracted by the conversion
// stage. Absence of metadata is tolerated, not fatal.
type ChecklistMetadata struct {
	Summary     string   `json:"summary"`
	Destination string   `json:"destination"`
	Duration    string   `json:"duration"`
	StayType    string   `json:"stay_type"`
	PhaseNames  []string `json:"phase_names"`
}

// FrontendChecklistItem is the normalized, dated projection of a
// ChecklistItem.
type FrontendChecklistItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
	DueDate     string `json:"dueDate"`
	Category    string `json:"category"`
	Order       int    `json:"order"`
	IsComplete  bool   `json:"isComplete"`
}

// FrontendChecklist is the externally visible projection of a generated
// checklist. ChecklistID is the stable identifier minted at submission time
// and reused unchanged from the pending banner through the final payload.
type FrontendChecklist struct {
	ChecklistID    string                  `json:"checklistId"`
	ConversationID string                  `json:"conversationId"`
	Title          string                  `json:"title"`
	Summary        string                  `json:"summary"`
	Destination    string                  `json:"destination"`
	Duration       string                  `json:"duration"`
	StayType       string                  `json:"stayType"`
	CityCode       string                  `json:"cityCode"`
	Status         string                  `json:"status"`
	Items          []FrontendChecklistItem `json:"items"`
	CreatedAt      string                  `json:"createdAt"`
	UpdatedAt      string                  `json:"updatedAt"`

	// Set on the pending banner only, so clients can correlate it with the
	// task before the final payload arrives.
	TaskID   string `json:"_taskId,omitempty"`
	StableID string `json:"_stableUuid,omitempty"`
}

// ChecklistError is the explicit error payload produced when the pipeline
// yields no artifact, so the failure is never a silently empty success.
type ChecklistError struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id"`
}

// Marshal is a convenience for storing pipeline payloads in task records.
func (e ChecklistError) Marshal() json.RawMessage {
	b, _ := json.Marshal(e)
	return b
}
