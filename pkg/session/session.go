// Package session owns the per-connection conversation loop.
//
// Each WebSocket connection gets one Session: a state machine that takes a
// finished utterance frame through transcription, context retrieval,
// generation, synthesis, and fire-and-forget persistence, then returns to
// awaiting audio. A turn is strictly single-flight; frames arriving
// mid-turn are answered with a busy notice. Stage failures degrade the
// current turn — a fallback reply, a text-only response — and never take
// the session down.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxa-labs/voxad/pkg/audioio"
	"github.com/voxa-labs/voxad/pkg/brain"
	"github.com/voxa-labs/voxad/pkg/embed"
	"github.com/voxa-labs/voxad/pkg/recall"
	"github.com/voxa-labs/voxad/pkg/store"
	"github.com/voxa-labs/voxad/pkg/synth"
	"github.com/voxa-labs/voxad/pkg/transcribe"
)

// State identifies where a session is in its turn cycle.
type State int32

const (
	StateAwaitingAudio State = iota
	StateTranscribing
	StateRetrievingContext
	StateGenerating
	StateSynthesizing
	StatePersisting
	StateDisconnected
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateAwaitingAudio:
		return "awaiting_audio"
	case StateTranscribing:
		return "transcribing"
	case StateRetrievingContext:
		return "retrieving_context"
	case StateGenerating:
		return "generating"
	case StateSynthesizing:
		return "synthesizing"
	case StatePersisting:
		return "persisting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Notices sent to the client as text frames.
const (
	NoticeNotUnderstood = "Sorry, I didn't catch that."
	NoticeThinking      = "Thinking..."
	NoticeBusy          = "Still working on your last message."
	NoticeNoAudio       = "Could not generate audio response."

	transcriptPrefix = "You said: "
	replyPrefix      = "AI: "
)

// Default stage budgets.
const (
	DefaultStageTimeout   = 15 * time.Second
	DefaultPersistTimeout = 10 * time.Second
)

// Conn is the client transport a session replies on. Implementations must
// be safe for concurrent writes; the busy notice is sent from the read
// loop while a turn goroutine is streaming.
type Conn interface {
	WriteText(text string) error
	WriteBinary(data []byte) error
}

// Config wires a session's collaborators.
type Config struct {
	UserID      string
	Conn        Conn
	Decoder     audioio.Decoder
	Transcriber transcribe.Transcriber
	Recall      *recall.Engine
	Generator   brain.Generator
	Synth       synth.Provider
	Store       store.Store
	Embedder    embed.Embedder

	// StageTimeout bounds each remote stage of a turn.
	StageTimeout time.Duration

	// PersistTimeout bounds the fire-and-forget persistence pass.
	PersistTimeout time.Duration

	Logger *slog.Logger
}

// Session is one client's conversation loop.
type Session struct {
	// ID is unique per connection; the store is keyed by UserID so
	// history and profile survive reconnects.
	ID     string
	UserID string

	conn        Conn
	decoder     audioio.Decoder
	transcriber transcribe.Transcriber
	recall      *recall.Engine
	generator   brain.Generator
	synth       synth.Provider
	store       store.Store
	embedder    embed.Embedder
	logger      *slog.Logger

	stageTimeout   time.Duration
	persistTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State

	work sync.WaitGroup
}

// New creates a session for an authenticated connection.
func New(cfg Config) *Session {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = audioio.Passthrough{}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		ID:             id,
		UserID:         cfg.UserID,
		conn:           cfg.Conn,
		decoder:        cfg.Decoder,
		transcriber:    cfg.Transcriber,
		recall:         cfg.Recall,
		generator:      cfg.Generator,
		synth:          cfg.Synth,
		store:          cfg.Store,
		embedder:       cfg.Embedder,
		logger:         cfg.Logger.With("component", "session", "session_id", id, "user_id", cfg.UserID),
		stageTimeout:   cfg.StageTimeout,
		persistTimeout: cfg.PersistTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleFrame accepts one utterance frame from the read loop. If a turn
// is already in flight the frame is rejected with a busy notice; the
// in-flight turn is never interrupted.
func (s *Session) HandleFrame(frame []byte) {
	s.mu.Lock()
	switch s.state {
	case StateDisconnected:
		s.mu.Unlock()
		return
	case StateAwaitingAudio:
		s.state = StateTranscribing
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.send(NoticeBusy)
		return
	}

	s.work.Add(1)
	go func() {
		defer s.work.Done()
		s.runTurn(frame)
	}()
}

// Close terminates the session: in-flight remote calls are cancelled and
// the turn goroutine is awaited. Persistence keeps its own deadline and
// is allowed to finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.cancel()
	s.work.Wait()
}

// Wait blocks until in-flight turn work, including persistence, is done.
func (s *Session) Wait() {
	s.work.Wait()
}

// runTurn drives one utterance through the full pipeline.
func (s *Session) runTurn(frame []byte) {
	defer s.transition(StateAwaitingAudio)

	start := time.Now()

	pcm, err := s.decoder.Decode(frame)
	if err != nil {
		s.logger.Warn("audio decode failed", "error", err, "frame_bytes", len(frame))
		s.send(NoticeNotUnderstood)
		return
	}

	utterance := s.transcribeStage(pcm)
	if utterance == "" {
		s.send(NoticeNotUnderstood)
		return
	}
	s.send(transcriptPrefix + utterance)

	s.transition(StateRetrievingContext)
	history, facts := s.contextStage(utterance)

	s.send(NoticeThinking)
	s.transition(StateGenerating)
	reply := s.generateStage(utterance, history, facts)
	s.send(replyPrefix + reply)

	s.transition(StateSynthesizing)
	s.speakStage(reply)

	s.transition(StatePersisting)
	s.work.Add(1)
	go func() {
		defer s.work.Done()
		s.persist(utterance, reply)
	}()

	s.logger.Debug("turn complete",
		"utterance_chars", len(utterance),
		"reply_chars", len(reply),
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// transcribeStage recognizes the utterance. Backend failure and silence
// are the same outcome: nothing understood.
func (s *Session) transcribeStage(pcm []byte) string {
	ctx, cancel := context.WithTimeout(s.ctx, s.stageTimeout)
	defer cancel()

	text, err := s.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		s.logger.Warn("transcription failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// contextStage retrieves conversational history and profile facts
// concurrently. Either side degrades to empty on failure.
func (s *Session) contextStage(utterance string) (recall.Bundle, []store.Fact) {
	ctx, cancel := context.WithTimeout(s.ctx, s.stageTimeout)
	defer cancel()

	var (
		history recall.Bundle
		facts   []store.Fact
		wg      sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		history = s.recall.Assemble(ctx, s.UserID, utterance)
	}()
	go func() {
		defer wg.Done()
		got, err := s.store.GetProfile(ctx, s.UserID)
		if err != nil {
			s.logger.Warn("profile retrieval degraded", "error", err)
			return
		}
		facts = got
	}()
	wg.Wait()

	return history, facts
}

// generateStage produces the reply text. The generator absorbs backend
// failures and always returns usable text.
func (s *Session) generateStage(utterance string, history recall.Bundle, facts []store.Fact) string {
	ctx, cancel := context.WithTimeout(s.ctx, s.stageTimeout)
	defer cancel()

	turns := make([]brain.Turn, 0, len(history))
	for _, entry := range history {
		turns = append(turns, brain.Turn{Role: entry.Role, Text: entry.Text})
	}

	return s.generator.Generate(ctx, utterance, turns, facts)
}

// speakStage streams reply audio to the client. A broken stream or sink
// degrades the turn to text-only.
func (s *Session) speakStage(reply string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.stageTimeout)
	defer cancel()

	if err := synth.Speak(ctx, s.synth, &connSink{conn: s.conn}, reply); err != nil {
		s.logger.Warn("synthesis degraded to text only", "error", err)
		s.send(NoticeNoAudio)
	}
}

// persist appends the exchange and learned facts. At-least-once,
// fire-and-forget: it runs on its own deadline so a disconnect does not
// lose the turn, and every failure is logged rather than surfaced.
func (s *Session) persist(utterance, reply string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	if err := s.store.Append(ctx, s.UserID, store.RoleUser, utterance, s.embedder.Embed(utterance)); err != nil {
		s.logger.Warn("persist user message failed", "error", err)
	}
	if err := s.store.Append(ctx, s.UserID, store.RoleAgent, reply, s.embedder.Embed(reply)); err != nil {
		s.logger.Warn("persist agent message failed", "error", err)
	}

	exchange := fmt.Sprintf("User: %s\nAI: %s", utterance, reply)
	for _, fact := range s.generator.ExtractFacts(ctx, exchange) {
		if err := s.store.UpsertProfile(ctx, s.UserID, fact.Key, fact.Value); err != nil {
			s.logger.Warn("profile upsert failed", "error", err, "key", fact.Key)
		}
	}
}

// transition moves to next unless the session has disconnected.
func (s *Session) transition(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	s.state = next
}

// send writes a text frame, logging instead of failing the turn when the
// connection is gone.
func (s *Session) send(text string) {
	if err := s.conn.WriteText(text); err != nil {
		s.logger.Debug("client write failed", "error", err)
	}
}

// connSink adapts the session connection into a synthesis sink: each
// audio chunk becomes its own binary frame, forwarded as produced.
type connSink struct {
	conn Conn
}

// Write forwards one chunk. The transport write doubles as flow control.
func (c *connSink) Write(ctx context.Context, chunk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.WriteBinary(chunk)
}

// Close is a no-op: the connection outlives the synthesis stream.
func (c *connSink) Close() error { return nil }

var _ synth.Sink = (*connSink)(nil)
