package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a checklist generation task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskGenerating TaskStatus = "generating"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether no further status transition can occur.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// TaskRecord tracks one submitted checklist generation job. It is created on
// submission, mutated only by the worker process, and observed read-only by
// the polling caller.
type TaskRecord struct {
	TaskID    string          `json:"taskId"`
	StableID  string          `json:"stableId"`
	Status    TaskStatus      `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ChecklistTaskPayload is the queue payload for a checklist generation job.
// StableID is minted at submission time and reused as the checklistId of
// both the pending banner and the final payload.
type ChecklistTaskPayload struct {
	SessionID string    `json:"sessionId"`
	StableID  string    `json:"stableId"`
	Messages  []Message `json:"messages"`
}

// TaskSubmitRequest enqueues a checklist generation job directly.
type TaskSubmitRequest struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
}

// TaskSubmitResponse acknowledges a submitted job.
type TaskSubmitResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// TaskStatusResponse is the idempotent read of a task's state.
type TaskStatusResponse struct {
	TaskID string          `json:"taskId"`
	Status TaskStatus      `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
