package checklist

import (
	"encoding/json"

	"hellocity/models"

	"github.com/hibiken/asynq"
)

// Task type and queue for checklist generation jobs.
const (
	TypeChecklistGenerate = "checklist:generate"
	QueueChecklists       = "checklists"
)

// NewChecklistTask creates a new checklist generation task.
func NewChecklistTask(payload models.ChecklistTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeChecklistGenerate, data), nil
}
