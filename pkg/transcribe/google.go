package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"
)

// Google implements Transcriber using the Cloud Speech-to-Text REST API.
type Google struct {
	svc    *speech.Service
	config *Config
	logger *slog.Logger
}

// NewGoogle creates a Google Cloud Speech transcriber.
// With no API key configured it falls back to application default
// credentials resolved through oauth2.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	var clientOpts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	default:
		ts, err := google.DefaultTokenSource(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("transcribe: credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := speech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("transcribe: create service: %w", err)
	}

	return &Google{
		svc:    svc,
		config: cfg,
		logger: cfg.Logger.With("component", "transcribe.google"),
	}, nil
}

// Transcribe recognizes speech in one PCM16 utterance.
func (g *Google) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoAudio
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(g.config.SampleRate),
			LanguageCode:    g.config.Language,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}

	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	transcript := strings.TrimSpace(strings.Join(parts, " "))

	g.logger.Debug("recognized speech",
		"bytes", len(audio),
		"chars", len(transcript),
	)

	return transcript, nil
}

var _ Transcriber = (*Google)(nil)
