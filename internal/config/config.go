package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Source    SourceConfig
	Keys      APIKeys
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	PersistTopic string // Background persistence queue topic
}

type AIConfig struct {
	EmbeddingProvider  string // "gemini" or "ollama"
	EmbeddingDimension int    // must match the vector column dimension
	OllamaBaseURL      string
	OllamaModel        string
	LLMProvider        string // "ollama" or "gemini"
	LLMModel           string // e.g. "llama3", "qwen2.5"
	MaxSteps           int    // tool-calling loop bound
}

type RetrievalConfig struct {
	MatchCount       int
	MatchThreshold   float64
	MinContentLength int
	SearchTimeout    int // seconds, per attempt
}

func (c RetrievalConfig) SearchTimeoutDuration() time.Duration {
	return time.Duration(c.SearchTimeout) * time.Second
}

type SourceConfig struct {
	BaseURL  string
	PageSize int
	Tag      string // source tag stamped on ingested documents
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			PersistTopic: getEnv("PERSIST_DOCUMENT_TOPIC_NAME", "PERSIST_DOCUMENT"),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:        getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			MaxSteps:           getEnvAsInt("AGENT_MAX_STEPS", 5),
		},
		Retrieval: RetrievalConfig{
			MatchCount:       getEnvAsInt("RETRIEVAL_MATCH_COUNT", 10),
			MatchThreshold:   getEnvAsFloat("RETRIEVAL_MATCH_THRESHOLD", 0.35),
			MinContentLength: getEnvAsInt("RETRIEVAL_MIN_CONTENT_LENGTH", 50),
			SearchTimeout:    getEnvAsInt("RETRIEVAL_SEARCH_TIMEOUT_SECONDS", 10),
		},
		Source: SourceConfig{
			BaseURL:  getEnv("DOCUMENT_SOURCE_BASE_URL", ""),
			PageSize: getEnvAsInt("DOCUMENT_SOURCE_PAGE_SIZE", 20),
			Tag:      getEnv("DOCUMENT_SOURCE_TAG", "regulatory-register"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
