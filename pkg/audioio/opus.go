package audioio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxFrameSamples covers the largest Opus frame (120ms) at 48kHz stereo.
const maxFrameSamples = 5760 * 2

// Opus decodes Opus packets to PCM16. Not safe for concurrent use; each
// session owns its decoder, matching per-session frame ordering.
type Opus struct {
	dec *opus.Decoder
	buf []int16
}

// NewOpus creates an Opus decoder producing mono PCM16 at sampleRate.
func NewOpus(sampleRate, channels int) (*Opus, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audioio: opus decoder: %w", err)
	}
	return &Opus{
		dec: dec,
		buf: make([]int16, maxFrameSamples),
	}, nil
}

// Decode converts one Opus packet into PCM16 little-endian bytes.
func (o *Opus) Decode(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, nil
	}
	n, err := o.dec.Decode(frame, o.buf)
	if err != nil {
		return nil, fmt.Errorf("audioio: opus decode: %w", err)
	}
	return pcmBytes(o.buf[:n]), nil
}

var _ Decoder = (*Opus)(nil)
