// Package config loads settings from the environment, with an optional .env
// file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full application configuration. Service ceilings are
// configurable because the remote services' limits may change.
type Config struct {
	// OpenAIAPIKey authenticates both remote services.
	OpenAIAPIKey string

	SourceLanguage string
	TargetLanguage string

	TranscriptionModel string
	TranslationModel   string

	MaxSegmentBytes int
	MaxChunkChars   int

	Concurrency  int
	MaxAttempts  int
	RetryBackoff time.Duration
	UnitTimeout  time.Duration

	DBPath   string
	HTTPAddr string
	CertFile string
	KeyFile  string

	InboxDir      string
	IngestWorkers int

	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first if present (it never overrides variables
// already set in the environment).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := Config{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		SourceLanguage:     envString("SOURCE_LANGUAGE", "vi"),
		TargetLanguage:     envString("TARGET_LANGUAGE", "en"),
		TranscriptionModel: envString("TRANSCRIPTION_MODEL", "whisper-1"),
		TranslationModel:   envString("TRANSLATION_MODEL", "gpt-4o-mini"),
		MaxSegmentBytes:    envInt("MAX_SEGMENT_BYTES", 20*1024*1024),
		MaxChunkChars:      envInt("MAX_CHUNK_CHARS", 2000),
		Concurrency:        envInt("REMOTE_CONCURRENCY", 2),
		MaxAttempts:        envInt("REMOTE_MAX_ATTEMPTS", 3),
		RetryBackoff:       envDuration("REMOTE_RETRY_BACKOFF", 500*time.Millisecond),
		UnitTimeout:        envDuration("REMOTE_UNIT_TIMEOUT", 5*time.Minute),
		DBPath:             envString("DB_PATH", "translations.db"),
		HTTPAddr:           envString("HTTP_ADDR", ":8080"),
		CertFile:           os.Getenv("TLS_CERT_FILE"),
		KeyFile:            os.Getenv("TLS_KEY_FILE"),
		InboxDir:           os.Getenv("INBOX_DIR"),
		IngestWorkers:      envInt("INGEST_WORKERS", 1),
		LogLevel:           parseLogLevel(envString("LOG_LEVEL", "info")),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default",
			"key", key,
			"value", v,
			"default", fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default",
			"key", key,
			"value", v,
			"default", fallback)
		return fallback
	}
	return d
}

func parseLogLevel(v string) slog.Level {
	switch v {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
