package synth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSpeak(t *testing.T) {
	t.Run("pumps every chunk to the sink in order", func(t *testing.T) {
		provider := &Mock{Chunks: [][]byte{
			[]byte("aaa"), []byte("bbb"), []byte("ccc"),
		}}
		sink := &MockSink{}

		if err := Speak(context.Background(), provider, sink, "hello"); err != nil {
			t.Fatalf("Speak: %v", err)
		}

		got := sink.Chunks()
		if len(got) != 3 {
			t.Fatalf("got %d chunks, want 3", len(got))
		}
		for i, want := range []string{"aaa", "bbb", "ccc"} {
			if string(got[i]) != want {
				t.Errorf("chunk %d = %q, want %q", i, got[i], want)
			}
		}
		if sink.CloseCount() == 0 {
			t.Error("sink was not closed")
		}
	})

	t.Run("empty text is a no-op but still closes the sink", func(t *testing.T) {
		provider := &Mock{Chunks: [][]byte{[]byte("unused")}}
		sink := &MockSink{}

		if err := Speak(context.Background(), provider, sink, "   "); err != nil {
			t.Fatalf("Speak: %v", err)
		}
		if len(provider.Calls()) != 0 {
			t.Errorf("provider was called %d times, want 0", len(provider.Calls()))
		}
		if sink.CloseCount() == 0 {
			t.Error("sink was not closed")
		}
	})

	t.Run("sink failure aborts the stream and closes everything", func(t *testing.T) {
		stream := NewBufferStream([][]byte{
			[]byte("one"), []byte("two"), []byte("three"),
		}, AudioFormat{})
		provider := &Mock{
			StreamFunc: func(ctx context.Context, text string) (AudioStream, error) {
				return stream, nil
			},
		}
		sink := &MockSink{FailAfter: 1}

		err := Speak(context.Background(), provider, sink, "hello")
		if !errors.Is(err, ErrSinkClosed) {
			t.Fatalf("err = %v, want ErrSinkClosed", err)
		}
		if got := sink.Chunks(); len(got) != 1 {
			t.Errorf("sink accepted %d chunks, want 1", len(got))
		}
		if !stream.Closed() {
			t.Error("provider stream was not closed after sink failure")
		}
		if sink.CloseCount() == 0 {
			t.Error("sink was not closed after failure")
		}
	})

	t.Run("provider failure still closes the sink", func(t *testing.T) {
		wantErr := errors.New("synthesis down")
		provider := &Mock{
			StreamFunc: func(ctx context.Context, text string) (AudioStream, error) {
				return nil, wantErr
			},
		}
		sink := &MockSink{}

		if err := Speak(context.Background(), provider, sink, "hello"); !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want %v", err, wantErr)
		}
		if sink.CloseCount() == 0 {
			t.Error("sink was not closed")
		}
	})

	t.Run("cancelled context stops the pump", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		provider := &Mock{Chunks: [][]byte{[]byte("aaa")}}
		sink := &MockSink{}

		if err := Speak(ctx, provider, sink, "hello"); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if sink.CloseCount() == 0 {
			t.Error("sink was not closed")
		}
	})
}

func TestElevenLabsStream(t *testing.T) {
	t.Run("streams response body as chunks", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("xi-api-key"); got != "test-key" {
				t.Errorf("xi-api-key = %q", got)
			}
			w.Write([]byte("pcm-audio-bytes"))
		}))
		defer srv.Close()

		provider, err := NewElevenLabs(
			WithAPIKey("test-key"),
			WithVoice("voice-1"),
			WithBaseURL(srv.URL),
		)
		if err != nil {
			t.Fatalf("NewElevenLabs: %v", err)
		}
		defer provider.Close()

		stream, err := provider.Stream(context.Background(), "hello")
		if err != nil {
			t.Fatalf("Stream: %v", err)
		}
		defer stream.Close()

		var audio []byte
		for {
			chunk, err := stream.Read()
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if chunk == nil {
				break
			}
			audio = append(audio, chunk...)
		}
		if string(audio) != "pcm-audio-bytes" {
			t.Errorf("audio = %q", audio)
		}
	})

	t.Run("non-retryable API error surfaces immediately", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":{"message":"bad key"}}`))
		}))
		defer srv.Close()

		provider, err := NewElevenLabs(
			WithAPIKey("wrong"),
			WithVoice("voice-1"),
			WithBaseURL(srv.URL),
		)
		if err != nil {
			t.Fatalf("NewElevenLabs: %v", err)
		}

		_, err = provider.Stream(context.Background(), "hello")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("err = %v, want *APIError", err)
		}
		if !apiErr.IsUnauthorized() {
			t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
		}
		if apiErr.Message != "bad key" {
			t.Errorf("Message = %q", apiErr.Message)
		}
		if calls != 1 {
			t.Errorf("server saw %d calls, want 1 (no retry on 401)", calls)
		}
	})

	t.Run("server errors are retried", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer srv.Close()

		provider, err := NewElevenLabs(
			WithAPIKey("test-key"),
			WithVoice("voice-1"),
			WithBaseURL(srv.URL),
			WithRetry(3, 1),
		)
		if err != nil {
			t.Fatalf("NewElevenLabs: %v", err)
		}

		stream, err := provider.Stream(context.Background(), "hello")
		if err != nil {
			t.Fatalf("Stream after retries: %v", err)
		}
		stream.Close()

		if calls != 3 {
			t.Errorf("server saw %d calls, want 3", calls)
		}
	})

	t.Run("missing credentials rejected at construction", func(t *testing.T) {
		if _, err := NewElevenLabs(WithVoice("v")); !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("err = %v, want ErrNoAPIKey", err)
		}
		if _, err := NewElevenLabs(WithAPIKey("k")); !errors.Is(err, ErrNoVoiceID) {
			t.Errorf("err = %v, want ErrNoVoiceID", err)
		}
	})
}
