package synth

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// reapTimeout bounds how long Close waits for ffplay to drain its buffer
// before killing the process.
const reapTimeout = 30 * time.Second

// FFPlay plays audio chunks through a local ffplay subprocess. Chunks are
// written to the child's stdin; Close signals EOF, waits for playback to
// finish, and kills the process if it does not exit in time. The process
// is reaped on every path so no zombie is left behind.
//
// FFPlay is a local-playback Sink for CLI use; server sessions use their
// transport-backed sink instead.
type FFPlay struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	format AudioFormat
	closed bool
}

// NewFFPlay starts an ffplay process reading raw audio from stdin.
func NewFFPlay(ctx context.Context, format AudioFormat) (*FFPlay, error) {
	args := []string{"-autoexit", "-nodisp", "-loglevel", "quiet"}
	if format.Encoding == EncodingPCM16 || format.Encoding == EncodingPCM24 {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(format.SampleRate),
			"-ch_layout", "mono",
		)
	}
	args = append(args, "-i", "-")

	cmd := exec.CommandContext(ctx, "ffplay", args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffplay stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}

	return &FFPlay{cmd: cmd, stdin: stdin, format: format}, nil
}

// Write delivers one chunk to the player. A write error means the process
// died; the caller should Close to reap it.
func (f *FFPlay) Write(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrSinkClosed
	}
	if _, err := f.stdin.Write(chunk); err != nil {
		return fmt.Errorf("write to ffplay: %w", err)
	}
	return nil
}

// Close signals EOF, waits for playback to drain, and reaps the process.
// Safe to call more than once.
func (f *FFPlay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	f.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- f.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(reapTimeout):
		f.cmd.Process.Kill()
		return <-done
	}
}

// Verify FFPlay implements Sink at compile time.
var _ Sink = (*FFPlay)(nil)
