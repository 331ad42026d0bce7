// File: hellocity/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hellocity/config"
	"hellocity/database"
	conversationRepo "hellocity/database/repository/conversation"
	"hellocity/handlers"
	"hellocity/middleware"
	"hellocity/routes"
	"hellocity/services/assistant"
	"hellocity/services/capability"
	"hellocity/services/checklist"
	"hellocity/services/stream"
	"hellocity/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	utils.InitRedis()

	// Per-role model clients.
	chatClient, err := capability.NewOpenAIClient(config.AppConfig.OpenAIAPIKey, config.AppConfig.LLMModelChat)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize chat client: %v", err)
	}
	judgeClient, err := capability.NewOpenAIClient(config.AppConfig.OpenAIAPIKey, config.AppConfig.LLMModelJudge)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize judge client: %v", err)
	}
	summaryClient, err := capability.NewOpenAIClient(config.AppConfig.OpenAIAPIKey, config.AppConfig.LLMModelSummary)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize summary client: %v", err)
	}

	var search capability.SearchProvider
	if config.AppConfig.TavilyAPIKey != "" {
		tavily, err := capability.NewTavilyClient(config.AppConfig.TavilyAPIKey)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize search client: %v", err)
		}
		search = tavily
	} else {
		logger.Sugar().Warn("main: no Tavily API key, search branch disabled")
	}

	var retriever capability.Retriever
	if config.AppConfig.EnableRAG {
		weav, err := capability.NewWeaviateRetriever(
			config.AppConfig.WeaviateHost,
			config.AppConfig.WeaviateScheme,
			config.AppConfig.WeaviateClass,
		)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize retriever: %v", err)
		}
		retriever = weav
	}

	var reviewer capability.Completer
	if config.AppConfig.EnableSupervisor {
		reviewer = chatClient
	}

	engine := &assistant.Engine{
		Judge:      judgeClient,
		Chat:       chatClient,
		Summarizer: summaryClient,
		Reviewer:   reviewer,
		Search:     search,
		Retriever:  retriever,
		Logger:     logger,
	}

	// Checklist task correlation: Redis-backed records plus the asynq queue.
	store := checklist.NewRedisTaskStore(
		utils.GetTaskStoreClient(),
		time.Duration(config.AppConfig.TaskResultTTLSec)*time.Second,
	)
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer queueClient.Close()

	correlator := &checklist.Correlator{
		Store:     store,
		Queue:     queueClient,
		Logger:    logger,
		ResultTTL: time.Duration(config.AppConfig.TaskResultTTLSec) * time.Second,
	}
	translator := &stream.Translator{Checklist: correlator, Logger: logger}

	// Optional conversation persistence.
	var conversations conversationRepo.ConversationRepository
	if config.AppConfig.DatabaseURL != "" {
		database.InitDB()
		conversations = conversationRepo.NewMongoConversationRepo()
	}
	utils.StartHealthMonitor(utils.GetTaskStoreClient(), database.MongoClient)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	taskDeps := handlers.TaskDeps{Correlator: correlator, Store: store}
	handlerBundle := &handlers.HandlerBundle{
		ChatStreamHandler: handlers.NewChatStreamHandler(handlers.ChatStreamDeps{
			Engine:        engine,
			Translator:    translator,
			Conversations: conversations,
		}),
		GenerateTitleHandler: handlers.NewGenerateTitleHandler(chatClient),
		SubmitTaskHandler:    handlers.NewSubmitTaskHandler(taskDeps),
		TaskStatusHandler:    handlers.NewTaskStatusHandler(taskDeps),
	}

	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
