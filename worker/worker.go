// File: worker/worker.go
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"hellocity/config"
	"hellocity/models"
	"hellocity/services/checklist"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

// Handler processes checklist generation jobs. It owns the task record for
// the duration of the job: generating on start, then exactly one terminal
// write.
type Handler struct {
	Pipeline *checklist.Pipeline
	Store    checklist.TaskStore
}

// Run starts the async worker in the foreground with retry logic.
func Run(h *Handler) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	concurrency := config.AppConfig.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				checklist.QueueChecklists: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(checklist.TypeChecklistGenerate, h.HandleChecklistTask)

	// Start Redis health monitor
	go monitorRedisConnection()

	log.Println("[ChecklistWorker] 🚀 Starting async worker...")
	const maxAttempts = 5

	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err := srv.Run(mux); err != nil {
			log.Printf("[ChecklistWorker] ❌ Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

			if attempts == maxAttempts {
				log.Fatal("[ChecklistWorker] ❗ Max retry attempts reached. Exiting.")
			}
			time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
		} else {
			break
		}
	}
}

// HandleChecklistTask runs the two-stage pipeline for one job and writes the
// terminal task record. It always writes exactly one terminal state; a job
// never ends as a silently empty success.
func (h *Handler) HandleChecklistTask(ctx context.Context, task *asynq.Task) error {
	var p models.ChecklistTaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		log.Printf("[ChecklistHandler] 🔴 Invalid payload: %v", err)
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	log.Printf("[ChecklistHandler] 📋 Generating checklist for session %s (task %s)", p.SessionID, taskID)

	h.writeRecord(ctx, models.TaskRecord{
		TaskID:   taskID,
		StableID: p.StableID,
		Status:   models.TaskGenerating,
	})

	started := time.Now()
	result := h.Pipeline.Run(ctx, p)
	log.Printf("[ChecklistHandler] ⏱ Pipeline finished for task %s in %s", taskID, time.Since(started).Round(time.Millisecond))

	rec := h.buildTerminalRecord(taskID, p, result)
	h.writeRecord(ctx, rec)

	if rec.Status == models.TaskFailed {
		log.Printf("[ChecklistHandler] ⚠️ Task %s failed: %s", taskID, rec.Error)
	} else {
		log.Printf("[ChecklistHandler] ✅ Task %s completed", taskID)
	}
	return nil
}

func (h *Handler) buildTerminalRecord(taskID string, p models.ChecklistTaskPayload, result checklist.Result) models.TaskRecord {
	rec := models.TaskRecord{TaskID: taskID, StableID: p.StableID}

	if result.Checklist != nil {
		payload, err := checklist.BuildFrontendChecklist(p.SessionID, result.Checklist, p.StableID, time.Now())
		if err != nil {
			rec.Status = models.TaskFailed
			rec.Error = fmt.Sprintf("Failed to transform generated checklist: %v", err)
			return rec
		}
		data, err := json.Marshal(payload)
		if err != nil {
			rec.Status = models.TaskFailed
			rec.Error = fmt.Sprintf("Failed to transform generated checklist: %v", err)
			return rec
		}
		rec.Status = models.TaskCompleted
		rec.Result = data
		return rec
	}

	if result.Metadata != nil {
		data, err := json.Marshal(result.Metadata)
		if err == nil {
			rec.Status = models.TaskCompleted
			rec.Result = data
			return rec
		}
	}

	// A partially malformed draft still beats nothing.
	if len(result.Raw) > 0 {
		rec.Status = models.TaskCompleted
		rec.Result = result.Raw
		return rec
	}

	rec.Status = models.TaskFailed
	rec.Error = "No checklist data generated"
	rec.Result = models.ChecklistError{
		Error:     "No checklist data generated",
		SessionID: p.SessionID,
	}.Marshal()
	return rec
}

func (h *Handler) writeRecord(ctx context.Context, rec models.TaskRecord) {
	if err := h.Store.Put(ctx, rec); err != nil {
		log.Printf("[ChecklistHandler] 🔴 Failed to write task record %s: %v", rec.TaskID, err)
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[ChecklistWorker] ⚠️ Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
