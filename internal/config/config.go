// Package config provides environment-driven configuration for voxad.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the turn pipeline.
const (
	DefaultPort           = 8000
	DefaultRecencyLimit   = 4
	DefaultSemanticLimit  = 3
	DefaultSimilarity     = 0.7
	DefaultStageTimeout   = 15 * time.Second
	DefaultPersistTimeout = 10 * time.Second
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultSpeechLanguage = "en-US"
)

// Config holds the full server configuration, loaded from VOXAD_* env vars.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Identity
	JWTSecret string

	// Persistent store. Empty disables conversation history.
	DatabaseURL string

	// Generation backend
	GeminiAPIKey string
	GeminiModel  string

	// Transcription
	SpeechAPIKey   string
	SpeechLanguage string

	// Synthesis
	TTSAPIKey  string
	TTSVoiceID string

	// Context retrieval
	RecencyLimit  int
	SemanticLimit int
	Similarity    float64

	// Per-stage remote call budget
	StageTimeout time.Duration

	// Budget for fire-and-forget persistence writes
	PersistTimeout time.Duration
}

// Load reads configuration from the environment.
// It returns an error for required values that are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           envInt("VOXAD_PORT", DefaultPort),
		LogLevel:       env("VOXAD_LOG_LEVEL", "info"),
		JWTSecret:      os.Getenv("VOXAD_JWT_SECRET"),
		DatabaseURL:    os.Getenv("VOXAD_DATABASE_URL"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    env("VOXAD_GEMINI_MODEL", DefaultGeminiModel),
		SpeechAPIKey:   os.Getenv("VOXAD_SPEECH_API_KEY"),
		SpeechLanguage: env("VOXAD_SPEECH_LANGUAGE", DefaultSpeechLanguage),
		TTSAPIKey:      os.Getenv("ELEVENLABS_API_KEY"),
		TTSVoiceID:     os.Getenv("ELEVENLABS_VOICE_ID"),
		RecencyLimit:   envInt("VOXAD_RECENCY_LIMIT", DefaultRecencyLimit),
		SemanticLimit:  envInt("VOXAD_SEMANTIC_LIMIT", DefaultSemanticLimit),
		Similarity:     envFloat("VOXAD_SIMILARITY", DefaultSimilarity),
		StageTimeout:   envDuration("VOXAD_STAGE_TIMEOUT", DefaultStageTimeout),
		PersistTimeout: envDuration("VOXAD_PERSIST_TIMEOUT", DefaultPersistTimeout),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: VOXAD_JWT_SECRET is required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("config: GEMINI_API_KEY is required")
	}

	return cfg, nil
}

// HistoryEnabled reports whether a persistent store is configured.
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
