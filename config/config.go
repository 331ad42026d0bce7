package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisTaskDB   int    `mapstructure:"REDIS_TASK_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// MongoDB conversation store. Empty disables turn persistence.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// OpenAI configuration. Per-role models fall back to LLM_MODEL.
	OpenAIAPIKey      string `mapstructure:"OPENAI_API_KEY"`
	LLMModel          string `mapstructure:"LLM_MODEL"`
	LLMModelChat      string `mapstructure:"LLM_MODEL_CHAT"`
	LLMModelJudge     string `mapstructure:"LLM_MODEL_JUDGE"`
	LLMModelSummary   string `mapstructure:"LLM_MODEL_SUMMARY"`
	LLMModelChecklist string `mapstructure:"LLM_MODEL_CHECKLIST"`

	// Tavily web search. Empty disables the search branch.
	TavilyAPIKey string `mapstructure:"TAVILY_API_KEY"`

	// Weaviate retrieval.
	WeaviateHost   string `mapstructure:"WEAVIATE_HOST"`
	WeaviateScheme string `mapstructure:"WEAVIATE_SCHEME"`
	WeaviateClass  string `mapstructure:"WEAVIATE_CLASS"`

	// Feature flags.
	EnableRAG        bool `mapstructure:"ENABLE_RAG"`
	EnableSupervisor bool `mapstructure:"ENABLE_SUPERVISOR"`

	// Worker tuning.
	WorkerConcurrency int `mapstructure:"WORKER_CONCURRENCY"`
	MaxSearchSteps    int `mapstructure:"MAX_SEARCH_STEPS"`
	TaskResultTTLSec  int `mapstructure:"TASK_RESULT_TTL_SEC"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_TASK_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
	viper.SetDefault("WEAVIATE_HOST", "localhost:8081")
	viper.SetDefault("WEAVIATE_SCHEME", "http")
	viper.SetDefault("WEAVIATE_CLASS", "CityDocument")
	viper.SetDefault("ENABLE_RAG", false)
	viper.SetDefault("ENABLE_SUPERVISOR", false)
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("MAX_SEARCH_STEPS", 50)
	viper.SetDefault("TASK_RESULT_TTL_SEC", 3600)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Per-role models fall back to the base model when not set explicitly.
	if AppConfig.LLMModelChat == "" {
		AppConfig.LLMModelChat = AppConfig.LLMModel
	}
	if AppConfig.LLMModelJudge == "" {
		AppConfig.LLMModelJudge = AppConfig.LLMModel
	}
	if AppConfig.LLMModelSummary == "" {
		AppConfig.LLMModelSummary = AppConfig.LLMModel
	}
	if AppConfig.LLMModelChecklist == "" {
		AppConfig.LLMModelChecklist = AppConfig.LLMModel
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
