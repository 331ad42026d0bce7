package checklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hellocity/models"

	"github.com/go-redis/redis/v8"
)

// ErrTaskNotFound is returned when a task record does not exist or expired.
var ErrTaskNotFound = errors.New("task record not found")

// TaskStore persists checklist task records. Records are written by the
// submitting API and the worker, and read by pollers.
type TaskStore interface {
	Put(ctx context.Context, rec models.TaskRecord) error
	Get(ctx context.Context, taskID string) (models.TaskRecord, error)
}

func taskKey(taskID string) string {
	return "checklist:task:" + taskID
}

// RedisTaskStore stores task records as JSON values with a TTL, so finished
// results expire on their own.
type RedisTaskStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTaskStore wraps a Redis client as a TaskStore.
func NewRedisTaskStore(client *redis.Client, ttl time.Duration) *RedisTaskStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisTaskStore{client: client, ttl: ttl}
}

func (s *RedisTaskStore) Put(ctx context.Context, rec models.TaskRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode task record: %w", err)
	}
	if err := s.client.Set(ctx, taskKey(rec.TaskID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store task record: %w", err)
	}
	return nil
}

func (s *RedisTaskStore) Get(ctx context.Context, taskID string) (models.TaskRecord, error) {
	data, err := s.client.Get(ctx, taskKey(taskID)).Bytes()
	if err == redis.Nil {
		return models.TaskRecord{}, ErrTaskNotFound
	}
	if err != nil {
		return models.TaskRecord{}, fmt.Errorf("read task record: %w", err)
	}
	var rec models.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.TaskRecord{}, fmt.Errorf("decode task record: %w", err)
	}
	return rec, nil
}

// MemoryTaskStore is an in-process TaskStore used in tests.
type MemoryTaskStore struct {
	mu      sync.Mutex
	records map[string]models.TaskRecord
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{records: make(map[string]models.TaskRecord)}
}

func (s *MemoryTaskStore) Put(_ context.Context, rec models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now().UTC()
	s.records[rec.TaskID] = rec
	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, taskID string) (models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[taskID]
	if !ok {
		return models.TaskRecord{}, ErrTaskNotFound
	}
	return rec, nil
}
