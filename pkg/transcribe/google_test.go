package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGoogle(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	g, err := NewGoogle(context.Background(),
		WithAPIKey("test-key"),
		WithEndpoint(ts.URL),
	)
	if err != nil {
		t.Fatalf("create transcriber: %v", err)
	}
	return g
}

func TestGoogleTranscribe(t *testing.T) {
	t.Run("joins top alternatives", func(t *testing.T) {
		g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Config struct {
					Encoding     string `json:"encoding"`
					LanguageCode string `json:"languageCode"`
				} `json:"config"`
				Audio struct {
					Content string `json:"content"`
				} `json:"audio"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if req.Config.Encoding != "LINEAR16" {
				t.Errorf("expected LINEAR16, got %q", req.Config.Encoding)
			}
			if req.Audio.Content == "" {
				t.Error("expected base64 audio content")
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"results": [
					{"alternatives": [{"transcript": "my name is"}]},
					{"alternatives": [{"transcript": "Asha"}]}
				]
			}`))
		})

		got, err := g.Transcribe(context.Background(), []byte{0, 1, 2, 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "my name is Asha" {
			t.Errorf("expected joined transcript, got %q", got)
		}
	})

	t.Run("no results means empty transcript", func(t *testing.T) {
		g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		})

		got, err := g.Transcribe(context.Background(), []byte{0, 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty transcript, got %q", got)
		}
	})

	t.Run("backend failure surfaces ErrBackend", func(t *testing.T) {
		g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"code": 503}}`, http.StatusServiceUnavailable)
		})

		_, err := g.Transcribe(context.Background(), []byte{0, 1})
		if !errors.Is(err, ErrBackend) {
			t.Errorf("expected ErrBackend, got %v", err)
		}
	})

	t.Run("empty audio rejected", func(t *testing.T) {
		g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected for empty audio")
		})

		_, err := g.Transcribe(context.Background(), nil)
		if !errors.Is(err, ErrNoAudio) {
			t.Errorf("expected ErrNoAudio, got %v", err)
		}
	})
}
