// Package synth streams synthesized speech to a playback sink.
//
// A Provider turns reply text into an audio stream; a Sink consumes audio
// chunks (a local player process or the session's client transport). Speak
// pumps one into the other with per-chunk flow control: the next chunk is
// not requested until the sink has accepted the previous one, so sink
// backpressure reaches the synthesis stream itself. The sink is reaped on
// every exit path.
//
// Example usage:
//
//	provider, _ := synth.NewElevenLabs(
//	    synth.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    synth.WithVoice("your-voice-id"),
//	)
//	defer provider.Close()
//
//	sink, _ := synth.NewFFPlay(ctx)
//	err := synth.Speak(ctx, provider, sink, "Hello world")
package synth

import (
	"context"
)

// Provider defines the speech synthesis provider interface.
type Provider interface {
	// Stream converts text to audio with streaming output for lowest
	// latency. Chunks are returned as they become available.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// Sink consumes synthesized audio chunks.
type Sink interface {
	// Write delivers one chunk, blocking until the sink accepts it.
	Write(ctx context.Context, chunk []byte) error

	// Close flushes and reaps the sink. Safe to call more than once.
	Close() error
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec (e.g., pcm_24000, mp3_44100_128).
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats.
	BitDepth int
}

// Encoding represents audio encoding types.
// These match ElevenLabs output format options.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"     // 16kHz mono PCM16
	EncodingPCM24 Encoding = "pcm_24000"     // 24kHz mono PCM16
	EncodingMP3   Encoding = "mp3_44100_128" // MP3 128kbps
)

// SampleRateFromEncoding returns the sample rate implied by an encoding.
func SampleRateFromEncoding(e Encoding) int {
	switch e {
	case EncodingPCM16:
		return 16000
	case EncodingPCM24:
		return 24000
	case EncodingMP3:
		return 44100
	default:
		return 0
	}
}
