package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voxa-labs/voxad/internal/httpc"
	"github.com/voxa-labs/voxad/internal/retry"
	"github.com/voxa-labs/voxad/pkg/store"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel  = "gemini-2.0-flash"
)

// Sentinel errors for the brain package.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("brain: API key required")

	// ErrEmptyResponse indicates the backend returned no usable candidate.
	ErrEmptyResponse = errors.New("brain: empty response")
)

// APIError represents an error response from the generation backend.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("brain: API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Request and response schema for generateContent. Unknown or missing
// fields are a parse failure at this boundary, not a silent default.

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Config holds Gemini adapter configuration.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// Option is a functional option for configuring the Gemini adapter.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTimeout bounds one generation call.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithMaxRetries sets the retry budget for retryable failures.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Gemini implements Generator against the Gemini generateContent API.
type Gemini struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini generation adapter.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := &Config{
		Model:      defaultModel,
		BaseURL:    geminiBaseURL,
		Timeout:    15 * time.Second,
		MaxRetries: 2,
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	return &Gemini{
		config: cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "brain.gemini"),
	}, nil
}

// Generate produces a reply to utterance. It never fails: any transport
// error, non-success status, or malformed body degrades to FallbackReply.
func (g *Gemini) Generate(ctx context.Context, utterance string, history []Turn, facts []store.Fact) string {
	if strings.TrimSpace(utterance) == "" {
		return FallbackEmptyUtterance
	}

	contents := make([]geminiContent, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, geminiContent{
			Role:  geminiRole(turn.Role),
			Parts: []geminiPart{{Text: turn.Text}},
		})
	}
	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: utterance}},
	})

	req := geminiRequest{
		Contents:          contents,
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemInstruction(facts)}}},
	}

	text, err := g.send(ctx, req)
	if err != nil {
		g.logger.Warn("generation failed, using fallback",
			"error", err,
			"history_len", len(history),
		)
		return FallbackReply
	}
	return text
}

// ExtractFacts asks the backend for explicitly stated user facts.
// Any transport or parse failure yields an empty list.
func (g *Gemini) ExtractFacts(ctx context.Context, exchange string) []store.Fact {
	if strings.TrimSpace(exchange) == "" {
		return nil
	}

	req := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: fmt.Sprintf(extractionPrompt, exchange)}},
		}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: extractionInstruction}}},
	}

	text, err := g.send(ctx, req)
	if err != nil {
		g.logger.Warn("fact extraction call failed", "error", err)
		return nil
	}

	facts, err := parseFacts(text)
	if err != nil {
		g.logger.Debug("fact extraction output unparseable", "error", err)
		return nil
	}
	return facts
}

// send performs one generateContent call, retrying retryable failures.
func (g *Gemini) send(ctx context.Context, request geminiRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("brain: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.config.BaseURL, g.config.Model, g.config.APIKey)

	var text string
	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  g.config.MaxRetries + 1,
		InitialDelay: 250 * time.Millisecond,
		ShouldRetry: func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.IsRetryable()
		},
	}, func() error {
		text, err = g.doRequest(ctx, url, body)
		return err
	})
	return text, err
}

func (g *Gemini) doRequest(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("brain: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("brain: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("brain: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Message: truncate(string(respBody), 200)}
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("brain: parse response: %w", err)
	}
	if result.Error.Message != "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: result.Error.Message}
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// geminiRole maps a message role to the backend's role vocabulary.
func geminiRole(role store.Role) string {
	if role == store.RoleAgent {
		return "model"
	}
	return "user"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var _ Generator = (*Gemini)(nil)
