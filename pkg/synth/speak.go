package synth

import (
	"context"
	"fmt"
	"strings"
)

// Speak synthesizes text through the provider and pumps the resulting audio
// into the sink chunk by chunk. The next chunk is only requested once the
// sink has accepted the previous one, so a slow sink throttles the
// synthesis stream rather than buffering unboundedly.
//
// The sink is closed on every exit path, including the empty-text no-op
// and mid-stream failures, so subprocess sinks are always reaped.
func Speak(ctx context.Context, provider Provider, sink Sink, text string) (err error) {
	defer func() {
		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if strings.TrimSpace(text) == "" {
		return nil
	}

	stream, err := provider.Stream(ctx, text)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		chunk, err := stream.Read()
		if err != nil {
			return err
		}
		if chunk == nil {
			return nil
		}
		if len(chunk) == 0 {
			continue
		}

		if err := sink.Write(ctx, chunk); err != nil {
			// Abort synthesis: the deferred stream.Close drops the
			// remainder of the provider stream.
			return fmt.Errorf("%w: %v", ErrSinkClosed, err)
		}
	}
}
