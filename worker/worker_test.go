package worker

import (
	"encoding/json"
	"testing"

	"hellocity/models"
	"hellocity/services/checklist"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskPayload() models.ChecklistTaskPayload {
	return models.ChecklistTaskPayload{
		SessionID: "session-1",
		StableID:  "stable-1",
		Messages:  []models.Message{{Role: models.RoleUser, Content: "moving to Tokyo"}},
	}
}

func TestTerminalRecordFromChecklist(t *testing.T) {
	h := &Handler{}
	result := checklist.Result{
		Checklist: &models.GeneratedChecklist{
			Title:       "Moving to Tokyo",
			Summary:     "s",
			Destination: "Tokyo",
			Duration:    "1y",
			StayType:    "long-term",
			Items: []models.ChecklistItem{
				{Title: "Visa", Description: "d", Importance: "high", Category: "Legal"},
			},
		},
	}

	rec := h.buildTerminalRecord("task-1", taskPayload(), result)

	assert.Equal(t, models.TaskCompleted, rec.Status)
	var fc models.FrontendChecklist
	require.NoError(t, json.Unmarshal(rec.Result, &fc))
	assert.Equal(t, "stable-1", fc.ChecklistID)
	assert.Equal(t, "session-1", fc.ConversationID)
	assert.Equal(t, "completed", fc.Status)
}

func TestTerminalRecordFromMetadataOnly(t *testing.T) {
	h := &Handler{}
	result := checklist.Result{
		Metadata: &models.ChecklistMetadata{Summary: "meta", Destination: "Tokyo"},
	}

	rec := h.buildTerminalRecord("task-1", taskPayload(), result)

	assert.Equal(t, models.TaskCompleted, rec.Status)
	var meta models.ChecklistMetadata
	require.NoError(t, json.Unmarshal(rec.Result, &meta))
	assert.Equal(t, "Tokyo", meta.Destination)
}

func TestTerminalRecordWhenNothingProduced(t *testing.T) {
	h := &Handler{}

	rec := h.buildTerminalRecord("task-1", taskPayload(), checklist.Result{})

	assert.Equal(t, models.TaskFailed, rec.Status)
	assert.Equal(t, "No checklist data generated", rec.Error)

	var payload models.ChecklistError
	require.NoError(t, json.Unmarshal(rec.Result, &payload))
	assert.Equal(t, "No checklist data generated", payload.Error)
	assert.Equal(t, "session-1", payload.SessionID)
}
