package transcribe

import (
	"context"
	"sync"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns Transcript.
	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)

	// Transcript is the fixed result when TranscribeFunc is nil.
	Transcript string

	mu    sync.Mutex
	calls [][]byte
}

// NewMock creates a mock transcriber returning transcript for every frame.
func NewMock(transcript string) *Mock {
	return &Mock{Transcript: transcript}
}

// Transcribe records the call and returns the configured result.
func (m *Mock) Transcribe(ctx context.Context, audio []byte) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, audio)
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return m.Transcript, nil
}

// Calls returns the audio frames submitted so far.
func (m *Mock) Calls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Transcriber = (*Mock)(nil)
