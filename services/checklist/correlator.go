package checklist

import (
	"context"
	"fmt"
	"time"

	"hellocity/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the slice of asynq.Client the correlator needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Correlator submits checklist jobs to the out-of-process worker and polls
// for their completion. The stable identifier it mints at submission time is
// reused unchanged as the checklistId of the pending banner and the final
// payload, so clients reconcile on a single key.
type Correlator struct {
	Store        TaskStore
	Queue        Enqueuer
	Logger       *zap.Logger
	PollInterval time.Duration
	ResultTTL    time.Duration
}

// Submit mints the task and stable identifiers, writes the pending record,
// and enqueues the two-stage pipeline as one atomic job. It returns
// immediately; the worker does the rest.
func (c *Correlator) Submit(ctx context.Context, sessionID string, msgs []models.Message) (taskID, stableID string, err error) {
	taskID = uuid.New().String()
	stableID = uuid.New().String()

	rec := models.TaskRecord{
		TaskID:   taskID,
		StableID: stableID,
		Status:   models.TaskPending,
	}
	if err := c.Store.Put(ctx, rec); err != nil {
		return "", "", fmt.Errorf("record pending task: %w", err)
	}

	task, err := NewChecklistTask(models.ChecklistTaskPayload{
		SessionID: sessionID,
		StableID:  stableID,
		Messages:  msgs,
	})
	if err != nil {
		return "", "", fmt.Errorf("build checklist task: %w", err)
	}

	retention := c.ResultTTL
	if retention <= 0 {
		retention = time.Hour
	}
	_, err = c.Queue.EnqueueContext(ctx, task,
		asynq.TaskID(taskID),
		asynq.Queue(QueueChecklists),
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(retention),
	)
	if err != nil {
		return "", "", fmt.Errorf("enqueue checklist task: %w", err)
	}

	c.Logger.Info("checklist task submitted",
		zap.String("sessionID", sessionID),
		zap.String("taskID", taskID),
		zap.String("stableID", stableID))
	return taskID, stableID, nil
}

// Poll reads the task record on a fixed interval until it reaches a terminal
// state. A store read failure is fail-fast: it yields a terminal failed
// record rather than retrying silently forever. Cancellation of ctx stops
// the poll with a failed record so an abandoned client never leaks a loop.
func (c *Correlator) Poll(ctx context.Context, taskID string) models.TaskRecord {
	interval := c.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		rec, err := c.Store.Get(ctx, taskID)
		if err != nil {
			c.Logger.Warn("task poll failed", zap.String("taskID", taskID), zap.Error(err))
			return models.TaskRecord{
				TaskID: taskID,
				Status: models.TaskFailed,
				Error:  fmt.Sprintf("task status check failed: %v", err),
			}
		}
		if rec.Status.Terminal() {
			return rec
		}

		select {
		case <-ctx.Done():
			return models.TaskRecord{
				TaskID: taskID,
				Status: models.TaskFailed,
				Error:  "polling canceled: " + ctx.Err().Error(),
			}
		case <-ticker.C:
		}
	}
}
