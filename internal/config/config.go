package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreCookie = "cookie"
	StoreRedis  = "redis"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	AdminToken  string
	ServerPort  string

	// AnonStore selects where anonymous usage counters live.
	AnonStore    string
	CookieSecure bool

	ChatAnonLimit    int
	AnalyzeAnonLimit int

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	InferenceURL     string
	InferenceTimeout time.Duration
	MaxUploadBytes   int64
	// PredictionCacheTTL enables the Redis prediction cache when positive.
	PredictionCacheTTL time.Duration

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
		ServerPort:  getEnv("SERVER_PORT", "8080"),

		AnonStore:    strings.ToLower(getEnv("ANON_COUNTER_STORE", StoreCookie)),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),

		ChatAnonLimit:    getEnvInt("CHAT_ANON_LIMIT", 5),
		AnalyzeAnonLimit: getEnvInt("ANALYZE_ANON_LIMIT", 3),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gemma2-9b-it"),
		LLMTimeout: getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:5000"),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", 30*time.Second),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		PredictionCacheTTL: getEnvDuration("PREDICTION_CACHE_TTL", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.AnonStore {
	case StoreCookie, StoreRedis:
	default:
		return fmt.Errorf("ANON_COUNTER_STORE must be %q or %q, got %q", StoreCookie, StoreRedis, c.AnonStore)
	}
	if c.ChatAnonLimit < 0 {
		return fmt.Errorf("CHAT_ANON_LIMIT must not be negative")
	}
	if c.AnalyzeAnonLimit < 0 {
		return fmt.Errorf("ANALYZE_ANON_LIMIT must not be negative")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PredictionCacheTTL < 0 {
		return fmt.Errorf("PREDICTION_CACHE_TTL must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
