// File: cmd/worker/main.go
// The checklist worker runs the two-stage generation pipeline out of process
// from the API server, consuming jobs from the asynq queue.
package main

import (
	"time"

	"hellocity/config"
	"hellocity/services/capability"
	"hellocity/services/checklist"
	"hellocity/utils"
	"hellocity/worker"

	"github.com/go-playground/validator/v10"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	utils.InitRedis()

	checklistClient, err := capability.NewOpenAIClient(config.AppConfig.OpenAIAPIKey, config.AppConfig.LLMModelChecklist)
	if err != nil {
		logger.Sugar().Fatalf("worker: failed to initialize checklist client: %v", err)
	}

	var search capability.SearchProvider
	if config.AppConfig.TavilyAPIKey != "" {
		tavily, err := capability.NewTavilyClient(config.AppConfig.TavilyAPIKey)
		if err != nil {
			logger.Sugar().Fatalf("worker: failed to initialize search client: %v", err)
		}
		search = tavily
	} else {
		logger.Sugar().Warn("worker: no Tavily API key, research step disabled")
	}

	pipeline := &checklist.Pipeline{
		Chat:       checklistClient,
		Structured: checklistClient,
		Search:     search,
		Validate:   validator.New(),
		Logger:     logger,
		MaxSteps:   config.AppConfig.MaxSearchSteps,
	}

	store := checklist.NewRedisTaskStore(
		utils.GetTaskStoreClient(),
		time.Duration(config.AppConfig.TaskResultTTLSec)*time.Second,
	)

	worker.Run(&worker.Handler{
		Pipeline: pipeline,
		Store:    store,
	})
}
