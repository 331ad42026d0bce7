// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"hellocity/config"

	"github.com/go-redis/redis/v8"
)

// TaskStoreClient is the Redis client backing checklist task records.
var TaskStoreClient *redis.Client

// InitRedis initializes the Redis client for the task record store (using the
// task DB from AppConfig; the queue DB is owned by asynq).
func InitRedis() {
	TaskStoreClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisTaskDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := TaskStoreClient.Ping(ctx).Result()
	if err != nil {
		log.Fatalf("Failed to connect to Redis (Task Store): %v", err)
	}
}

// GetTaskStoreClient returns the task record store client.
func GetTaskStoreClient() *redis.Client {
	if TaskStoreClient == nil {
		InitRedis()
	}
	return TaskStoreClient
}
