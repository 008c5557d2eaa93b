package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the server-level settings. Adapter credentials stay with
// their adapters; this covers what the wiring in main needs.
type Config struct {
	Port      string
	JWTSecret string

	ProjectID     string
	StrictRAGOnly bool
	RAGMinScore   float64

	EnableSupabaseStorage bool
	AudioBucket           string

	DedupWindow       time.Duration
	SilenceTimeout    time.Duration
	InactivityTimeout time.Duration
}

// Load reads .env when present and resolves the configuration
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		ProjectID:             os.Getenv("PROJECT_ID"),
		StrictRAGOnly:         getBool(logger, "STRICT_RAG_ONLY", true),
		RAGMinScore:           getFloat(logger, "RAG_MIN_SCORE", 0.75),
		EnableSupabaseStorage: getBool(logger, "ENABLE_SUPABASE_STORAGE", false),
		AudioBucket:           getEnv("SUPABASE_AUDIO_BUCKET", "audio"),
		DedupWindow:           getMillis(logger, "DEDUP_WINDOW_MS", 2000),
		SilenceTimeout:        getMillis(logger, "SILENCE_TIMEOUT_MS", 5000),
		InactivityTimeout:     getMillis(logger, "INACTIVITY_TIMEOUT_MS", 60000),
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "dev-insecure-secret"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(logger *zap.Logger, key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logger.Warn("Invalid boolean in environment, using default",
			zap.String("key", key), zap.String("value", value))
		return fallback
	}
	return parsed
}

func getFloat(logger *zap.Logger, key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warn("Invalid number in environment, using default",
			zap.String("key", key), zap.String("value", value))
		return fallback
	}
	return parsed
}

func getMillis(logger *zap.Logger, key string, fallback int) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(fallback) * time.Millisecond
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logger.Warn("Invalid duration in environment, using default",
			zap.String("key", key), zap.String("value", value))
		return time.Duration(fallback) * time.Millisecond
	}
	return time.Duration(parsed) * time.Millisecond
}
