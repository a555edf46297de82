// Package recall assembles the conversational context for one turn.
//
// The engine fans out a recency query and a semantic similarity query
// against the store, merges the results into a single deduplicated,
// chronologically ordered bundle, and never fails a turn: each branch
// degrades independently to an empty contribution when its query errors,
// and an empty store yields an empty bundle.
package recall

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/voxa-labs/voxad/pkg/embed"
	"github.com/voxa-labs/voxad/pkg/store"
)

// Defaults for context retrieval.
const (
	DefaultRecencyLimit  = 4
	DefaultSemanticLimit = 3
	DefaultSimilarity    = 0.7
)

// Entry is one prior message included in a turn's context.
type Entry struct {
	Role      store.Role
	Text      string
	CreatedAt time.Time
}

// Bundle is the deduplicated, chronologically ordered context for one
// generation call. It is computed fresh per turn and never persisted.
type Bundle []Entry

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithRecencyLimit sets how many recent messages to fetch.
func WithRecencyLimit(n int) Option {
	return func(e *Engine) { e.recencyLimit = n }
}

// WithSemanticLimit sets how many similar messages to fetch.
func WithSemanticLimit(k int) Option {
	return func(e *Engine) { e.semanticLimit = k }
}

// WithSimilarity sets the cosine similarity threshold.
func WithSimilarity(t float64) Option {
	return func(e *Engine) { e.similarity = t }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With("component", "recall") }
}

// Engine retrieves and merges conversational context.
type Engine struct {
	store    store.Store
	embedder embed.Embedder

	recencyLimit  int
	semanticLimit int
	similarity    float64

	logger *slog.Logger
}

// NewEngine creates a context retrieval engine.
func NewEngine(s store.Store, e embed.Embedder, opts ...Option) *Engine {
	eng := &Engine{
		store:         s,
		embedder:      e,
		recencyLimit:  DefaultRecencyLimit,
		semanticLimit: DefaultSemanticLimit,
		similarity:    DefaultSimilarity,
		logger:        slog.Default().With("component", "recall"),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Assemble builds the context bundle for one turn. The utterance is
// embedded once; recency and semantic retrieval run concurrently and are
// joined before returning. A failed branch contributes nothing.
func (e *Engine) Assemble(ctx context.Context, sessionID, utterance string) Bundle {
	vector := e.embedder.Embed(utterance)

	recentCh := make(chan []store.Message, 1)
	similarCh := make(chan []store.Message, 1)

	go func() {
		msgs, err := e.store.QueryRecent(ctx, sessionID, e.recencyLimit)
		if err != nil {
			e.logger.Warn("recency retrieval degraded", "error", err, "session_id", sessionID)
			msgs = nil
		}
		recentCh <- msgs
	}()

	go func() {
		msgs, err := e.store.QuerySimilar(ctx, vector, e.similarity, e.semanticLimit)
		if err != nil {
			e.logger.Warn("semantic retrieval degraded", "error", err, "session_id", sessionID)
			msgs = nil
		}
		similarCh <- msgs
	}()

	recent := <-recentCh
	similar := <-similarCh

	return merge(similar, recent)
}

// merge deduplicates by normalized text and orders chronologically.
// Recency entries overwrite semantic entries on key collision; they carry
// the canonical field values used downstream.
//
// Dedup is exact-match on the trimmed, case-folded display string, so
// paraphrased duplicates are not merged. Known limitation; do not "fix"
// without confirming the desired semantics.
func merge(semantic, recent []store.Message) Bundle {
	merged := make(map[string]store.Message)

	for _, m := range semantic {
		if key := normalize(m.Text); key != "" {
			merged[key] = m
		}
	}
	for _, m := range recent {
		if key := normalize(m.Text); key != "" {
			merged[key] = m
		}
	}

	msgs := make([]store.Message, 0, len(merged))
	for _, m := range merged {
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	bundle := make(Bundle, 0, len(msgs))
	for _, m := range msgs {
		bundle = append(bundle, Entry{
			Role:      m.Role,
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
		})
	}
	return bundle
}

// normalize produces the dedup key: trimmed and case-folded.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
