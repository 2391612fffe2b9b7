package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vi", cfg.SourceLanguage)
	assert.Equal(t, "en", cfg.TargetLanguage)
	assert.Equal(t, "whisper-1", cfg.TranscriptionModel)
	assert.Equal(t, "gpt-4o-mini", cfg.TranslationModel)
	assert.Equal(t, 20*1024*1024, cfg.MaxSegmentBytes)
	assert.Equal(t, 2000, cfg.MaxChunkChars)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SOURCE_LANGUAGE", "es")
	t.Setenv("MAX_CHUNK_CHARS", "500")
	t.Setenv("REMOTE_RETRY_BACKOFF", "2s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "es", cfg.SourceLanguage)
	assert.Equal(t, 500, cfg.MaxChunkChars)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MAX_SEGMENT_BYTES", "lots")
	t.Setenv("REMOTE_UNIT_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20*1024*1024, cfg.MaxSegmentBytes)
	assert.Equal(t, 5*time.Minute, cfg.UnitTimeout)
}
