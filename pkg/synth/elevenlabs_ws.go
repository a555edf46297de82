package synth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	wsHandshakeTimeout  = 10 * time.Second
)

// ElevenLabsWS implements Provider over the ElevenLabs stream-input
// WebSocket. Each Stream call dials a fresh connection, sends the whole
// utterance followed by end-of-stream, and hands the socket to the
// returned AudioStream. Chunks arrive sooner than with the HTTP endpoint
// because synthesis starts before the full audio is rendered.
type ElevenLabsWS struct {
	config  *Config
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabsWS creates a WebSocket-based ElevenLabs provider.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsWSBaseURL
	}

	return &ElevenLabsWS{
		config:  cfg,
		logger:  cfg.Logger.With("component", "synth.elevenlabs_ws"),
		baseURL: baseURL,
	}, nil
}

// Stream dials the stream-input endpoint, submits the utterance, and
// returns a stream over the inbound audio messages.
func (e *ElevenLabsWS) Stream(ctx context.Context, text string) (AudioStream, error) {
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.baseURL, e.config.VoiceID, e.config.ModelID, e.config.OutputFormat)

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, WrapError(providerElevenLabs,
				fmt.Errorf("websocket dial (status %d): %w", resp.StatusCode, err))
		}
		return nil, WrapError(providerElevenLabs, fmt.Errorf("websocket dial: %w", err))
	}

	// Begin-of-stream carries voice settings; the chunk schedule trades a
	// little quality for first-chunk latency.
	bos := map[string]interface{}{
		"text": " ",
		"voice_settings": map[string]interface{}{
			"stability":        e.config.Stability,
			"similarity_boost": e.config.Boost,
		},
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	for _, msg := range []map[string]interface{}{
		bos,
		{"text": text + " "},
		{"text": ""}, // end-of-stream
	} {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return nil, WrapError(providerElevenLabs, fmt.Errorf("send utterance: %w", err))
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	e.logger.Debug("synthesis socket open", "chars", len(text), "model", e.config.ModelID)

	return &wsStream{
		conn: conn,
		format: AudioFormat{
			Encoding:   e.config.OutputFormat,
			SampleRate: SampleRateFromEncoding(e.config.OutputFormat),
			Channels:   1,
			BitDepth:   16,
		},
	}, nil
}

// Health dials and immediately closes a connection to verify credentials.
func (e *ElevenLabsWS) Health(ctx context.Context) error {
	stream, err := e.Stream(ctx, " ")
	if err != nil {
		return err
	}
	return stream.Close()
}

// Close releases provider resources. Connections are per-stream, so
// there is nothing to tear down here.
func (e *ElevenLabsWS) Close() error { return nil }

// wsStream reads audio messages off the synthesis socket.
type wsStream struct {
	conn   *websocket.Conn
	format AudioFormat
	done   bool
}

// Read returns the next decoded audio chunk, or nil once the provider
// marks the stream final.
func (s *wsStream) Read() ([]byte, error) {
	for {
		if s.done {
			return nil, nil
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.done = true
				return nil, nil
			}
			return nil, WrapError(providerElevenLabs, fmt.Errorf("read audio: %w", err))
		}

		var resp struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			return nil, WrapError(providerElevenLabs, fmt.Errorf("parse message: %w", err))
		}
		if resp.Error != "" {
			return nil, WrapError(providerElevenLabs, fmt.Errorf("provider: %s", resp.Error))
		}
		if resp.IsFinal {
			s.done = true
		}
		if resp.Audio == "" {
			continue
		}

		chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
		if err != nil {
			return nil, WrapError(providerElevenLabs, fmt.Errorf("decode audio: %w", err))
		}
		return chunk, nil
	}
}

// Close tears down the socket.
func (s *wsStream) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Format returns the audio format.
func (s *wsStream) Format() AudioFormat {
	return s.format
}

// Verify ElevenLabsWS implements Provider at compile time.
var _ Provider = (*ElevenLabsWS)(nil)
