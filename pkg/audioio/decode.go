// Package audioio converts negotiated client audio into PCM16 mono for
// transcription. The wire protocol does not enforce a format; the codec is
// agreed out of band and selected per session.
package audioio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Audio parameters expected by the transcription backend.
const (
	SampleRate = 16000
	Channels   = 1
)

// ErrUnsupportedCodec indicates the negotiated codec has no decoder.
var ErrUnsupportedCodec = errors.New("audioio: unsupported codec")

// Decoder converts one client audio frame into PCM16 little-endian mono.
type Decoder interface {
	Decode(frame []byte) ([]byte, error)
}

// ForCodec returns the decoder for a negotiated codec name.
// Empty and "pcm" select passthrough; "opus" selects Opus decode.
func ForCodec(codec string) (Decoder, error) {
	switch codec {
	case "", "pcm":
		return Passthrough{}, nil
	case "opus":
		return NewOpus(SampleRate, Channels)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
}

// Passthrough assumes frames already carry PCM16 mono at SampleRate.
type Passthrough struct{}

// Decode returns the frame unchanged.
func (Passthrough) Decode(frame []byte) ([]byte, error) {
	return frame, nil
}

// pcmBytes converts int16 samples to little-endian bytes.
func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
