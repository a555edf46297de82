// Package brain adapts the language-model backend for the turn pipeline.
//
// The backend is a single stateless remote call per invocation. The adapter
// owns the request contract: persona instruction plus profile facts, prior
// turns, then the new utterance. Failures never escape this boundary —
// Generate degrades to a fixed fallback reply and ExtractFacts degrades to
// an empty list, so a backend outage costs one turn's quality, never the
// session.
package brain

import (
	"context"

	"github.com/voxa-labs/voxad/pkg/store"
)

// Fallback replies used when the backend cannot produce a response.
const (
	// FallbackReply is returned by Generate on any transport or parse failure.
	FallbackReply = "I'm having trouble right now."

	// FallbackEmptyUtterance is returned when there is nothing to respond to.
	FallbackEmptyUtterance = "I'm sorry, I didn't hear anything."
)

// Turn is one prior exchange entry passed as generation context.
type Turn struct {
	Role store.Role
	Text string
}

// Generator produces replies and extracts profile facts.
type Generator interface {
	// Generate produces a reply to utterance given prior turns and known
	// profile facts. It always returns usable text; failures yield
	// FallbackReply.
	Generate(ctx context.Context, utterance string, history []Turn, facts []store.Fact) string

	// ExtractFacts pulls explicitly stated user facts out of the most
	// recent exchange. Any failure yields an empty list.
	ExtractFacts(ctx context.Context, exchange string) []store.Fact
}
