package synth

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// StreamFunc is called when Stream is invoked.
	// If nil, a BufferStream over Chunks is returned.
	StreamFunc func(ctx context.Context, text string) (AudioStream, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// Chunks are served by the default stream, one per Read.
	Chunks [][]byte

	// Tracking
	mu    sync.Mutex
	calls []string
}

// Stream calls StreamFunc, or serves Chunks.
func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	m.record(text)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}
	return NewBufferStream(m.Chunks, AudioFormat{
		Encoding:   EncodingPCM16,
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}), nil
}

// Health calls HealthFunc if set.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }

// Calls returns the text of every Stream invocation.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) record(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
}

// BufferStream serves pre-built chunks as an AudioStream.
type BufferStream struct {
	mu     sync.Mutex
	chunks [][]byte
	next   int
	closed bool
	format AudioFormat
}

// NewBufferStream wraps chunks in an AudioStream.
func NewBufferStream(chunks [][]byte, format AudioFormat) *BufferStream {
	return &BufferStream{chunks: chunks, format: format}
}

// Read returns the next chunk, or nil when exhausted.
func (s *BufferStream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.next >= len(s.chunks) {
		return nil, nil
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

// Close stops the stream.
func (s *BufferStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *BufferStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Format returns the audio format.
func (s *BufferStream) Format() AudioFormat {
	return s.format
}

// MockSink collects written chunks for testing.
type MockSink struct {
	// WriteFunc overrides the default collecting behaviour.
	WriteFunc func(ctx context.Context, chunk []byte) error

	// FailAfter makes Write return an error once this many chunks
	// have been accepted. Zero means never fail.
	FailAfter int

	mu      sync.Mutex
	chunks  [][]byte
	closed  int
	written int
}

// Write records the chunk, or fails per FailAfter / WriteFunc.
func (s *MockSink) Write(ctx context.Context, chunk []byte) error {
	if s.WriteFunc != nil {
		return s.WriteFunc(ctx, chunk)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAfter > 0 && s.written >= s.FailAfter {
		return ErrSinkClosed
	}
	s.written++
	s.chunks = append(s.chunks, chunk)
	return nil
}

// Close counts invocations; always succeeds.
func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Chunks returns the accepted chunks.
func (s *MockSink) Chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// CloseCount returns how many times Close was called.
func (s *MockSink) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Verify mocks implement their interfaces at compile time.
var (
	_ Provider    = (*Mock)(nil)
	_ AudioStream = (*BufferStream)(nil)
	_ Sink        = (*MockSink)(nil)
)
