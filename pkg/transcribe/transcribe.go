// Package transcribe converts utterance audio to text.
//
// The transcription engine is an external collaborator: the package exposes
// the Transcriber contract consumed by the session pipeline, a Google Cloud
// Speech implementation, and a Mock for tests. An empty transcript is a
// valid result meaning nothing was understood; callers must not treat it
// as an error.
package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Sentinel errors for the transcribe package.
var (
	// ErrNoAudio indicates an empty audio frame was submitted.
	ErrNoAudio = errors.New("transcribe: no audio data")

	// ErrBackend indicates the recognition service failed.
	ErrBackend = errors.New("transcribe: backend failed")
)

// Transcriber converts one finished utterance into text.
type Transcriber interface {
	// Transcribe recognizes speech in audio (PCM16 mono).
	// It returns "" with a nil error when no speech was recognized.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Config holds transcriber configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// APIKey authenticates with an API key. When empty, application
	// default credentials are used instead.
	APIKey string

	// Endpoint overrides the default API endpoint (tests).
	Endpoint string

	// Language is the BCP-47 recognition language code.
	Language string

	// SampleRate of the submitted PCM16 audio in Hz.
	SampleRate int

	// Timeout bounds one recognition call.
	Timeout time.Duration

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// Option is a functional option for configuring transcribers.
type Option func(*Config)

// WithAPIKey authenticates with an API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithEndpoint overrides the default API endpoint.
func WithEndpoint(url string) Option {
	return func(c *Config) { c.Endpoint = url }
}

// WithLanguage sets the recognition language code.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithSampleRate sets the input sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(c *Config) { c.SampleRate = hz }
}

// WithTimeout bounds one recognition call.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Language:   "en-US",
		SampleRate: 16000,
		Timeout:    15 * time.Second,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
