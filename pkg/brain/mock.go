package brain

import (
	"context"
	"sync"

	"github.com/voxa-labs/voxad/pkg/store"
)

// Mock implements Generator for testing.
type Mock struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, returns Reply.
	GenerateFunc func(ctx context.Context, utterance string, history []Turn, facts []store.Fact) string

	// ExtractFactsFunc is called when ExtractFacts is invoked.
	// If nil, returns Facts.
	ExtractFactsFunc func(ctx context.Context, exchange string) []store.Fact

	// Reply is the fixed reply when GenerateFunc is nil.
	Reply string

	// Facts is the fixed extraction result when ExtractFactsFunc is nil.
	Facts []store.Fact

	mu sync.Mutex

	// Captured calls for assertions.
	GenerateCalls []GenerateCall
	Exchanges     []string
}

// GenerateCall records one Generate invocation.
type GenerateCall struct {
	Utterance string
	History   []Turn
	Facts     []store.Fact
}

// NewMock creates a mock generator with a fixed reply.
func NewMock(reply string) *Mock {
	return &Mock{Reply: reply}
}

// Generate records the call and returns the configured reply.
func (m *Mock) Generate(ctx context.Context, utterance string, history []Turn, facts []store.Fact) string {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{
		Utterance: utterance,
		History:   history,
		Facts:     facts,
	})
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, utterance, history, facts)
	}
	return m.Reply
}

// ExtractFacts records the call and returns the configured facts.
func (m *Mock) ExtractFacts(ctx context.Context, exchange string) []store.Fact {
	m.mu.Lock()
	m.Exchanges = append(m.Exchanges, exchange)
	m.mu.Unlock()

	if m.ExtractFactsFunc != nil {
		return m.ExtractFactsFunc(ctx, exchange)
	}
	return m.Facts
}

// LastGenerate returns the most recent Generate call, or nil.
func (m *Mock) LastGenerate() *GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.GenerateCalls) == 0 {
		return nil
	}
	call := m.GenerateCalls[len(m.GenerateCalls)-1]
	return &call
}

var _ Generator = (*Mock)(nil)
