package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	LogDir       string
	LogLevel     string

	DatabaseURL        string
	RedisURL           string
	EmbeddingDimension int

	LLMProvider       string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIChatModel   string
	EmbeddingModel    string
	AnthropicAPIKey   string
	AnthropicBaseURL  string
	AnthropicModel    string
	LLMRequestTimeout time.Duration
	TokenizerModel    string

	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
	QueryCacheTTL       time.Duration
	EmbeddingCacheTTL   time.Duration

	MaxUploadSizeMB int
	UploadDir       string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string

	IngestWorkers        int
	IngestQueueSize      int
	StaleProcessingAfter time.Duration
	SweepInterval        time.Duration
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		Domains:      getEnvAsList("DOMAIN", []string{"example.com"}),
		CertCacheDir: getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		HTTPPort:     getEnv("HTTP_PORT", "8000"),
		LogDir:       getEnv("LOG_DIR", "logs"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),

		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIChatModel:   getEnv("OPENAI_CHAT_MODEL", "gpt-4-turbo-preview"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:  getEnv("ANTHROPIC_BASE_URL", ""),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		LLMRequestTimeout: time.Duration(getEnvAsInt("LLM_REQUEST_TIMEOUT", 60)) * time.Second,
		TokenizerModel:    getEnv("TOKENIZER_MODEL", "gpt-4"),

		ChunkSize:           getEnvAsInt("CHUNK_SIZE", 500),
		ChunkOverlap:        getEnvAsInt("CHUNK_OVERLAP", 50),
		TopK:                getEnvAsInt("TOP_K", 5),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.7),
		QueryCacheTTL:       time.Duration(getEnvAsInt("QUERY_CACHE_TTL", 3600)) * time.Second,
		EmbeddingCacheTTL:   time.Duration(getEnvAsInt("EMBEDDING_CACHE_TTL", 2592000)) * time.Second,

		MaxUploadSizeMB: getEnvAsInt("MAX_UPLOAD_SIZE_MB", 10),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),

		IngestWorkers:        getEnvAsInt("INGEST_WORKERS", 4),
		IngestQueueSize:      getEnvAsInt("INGEST_QUEUE_SIZE", 100),
		StaleProcessingAfter: time.Duration(getEnvAsInt("STALE_PROCESSING_MINUTES", 30)) * time.Minute,
		SweepInterval:        time.Duration(getEnvAsInt("SWEEP_INTERVAL", 300)) * time.Second,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.TopK))
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("SIMILARITY_THRESHOLD must be in [0, 1], got %g", c.SimilarityThreshold))
	}
	if c.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension))
	}
	if c.MaxUploadSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive, got %d", c.MaxUploadSizeMB))
	}
	if c.IngestWorkers <= 0 || c.IngestQueueSize <= 0 {
		errs = append(errs, errors.New("INGEST_WORKERS and INGEST_QUEUE_SIZE must be positive"))
	}
	if c.StaleProcessingAfter <= 0 || c.SweepInterval <= 0 {
		errs = append(errs, errors.New("STALE_PROCESSING_MINUTES and SWEEP_INTERVAL must be positive"))
	}
	switch c.LLMProvider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be openai or anthropic, got %q", c.LLMProvider))
	}

	return errors.Join(errs...)
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
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

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
