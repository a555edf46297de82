package store

import (
	"context"
	"sync"
	"time"
)

// Mock implements Store for testing.
// Behavior is customizable via function fields; without overrides it acts
// as a simple in-memory store with monotonic timestamps.
type Mock struct {
	mu sync.Mutex

	AppendFunc          func(ctx context.Context, sessionID string, role Role, text string, embedding []float32) error
	QueryRecentFunc     func(ctx context.Context, sessionID string, limit int) ([]Message, error)
	QuerySimilarFunc    func(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Message, error)
	GetProfileFunc      func(ctx context.Context, userID string) ([]Fact, error)
	UpsertProfileFunc   func(ctx context.Context, userID, key, value string) error
	DeleteBySessionFunc func(ctx context.Context, sessionID string) error

	// Captured state for assertions.
	Messages []Message
	Profiles map[string]map[string]string
	Deleted  []string

	clock time.Time
}

// NewMock creates a mock store.
func NewMock() *Mock {
	return &Mock{
		Profiles: make(map[string]map[string]string),
		clock:    time.Unix(1700000000, 0),
	}
}

func (m *Mock) Append(ctx context.Context, sessionID string, role Role, text string, embedding []float32) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, sessionID, role, text, embedding)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	m.Messages = append(m.Messages, Message{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Embedding: embedding,
		CreatedAt: m.clock,
	})
	return nil
}

func (m *Mock) QueryRecent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if m.QueryRecentFunc != nil {
		return m.QueryRecentFunc(ctx, sessionID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for i := len(m.Messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Messages[i].SessionID == sessionID {
			out = append(out, m.Messages[i])
		}
	}
	return out, nil
}

func (m *Mock) QuerySimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Message, error) {
	if m.QuerySimilarFunc != nil {
		return m.QuerySimilarFunc(ctx, embedding, threshold, limit)
	}
	return nil, nil
}

func (m *Mock) GetProfile(ctx context.Context, userID string) ([]Fact, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var facts []Fact
	for k, v := range m.Profiles[userID] {
		facts = append(facts, Fact{Key: k, Value: v})
	}
	return facts, nil
}

func (m *Mock) UpsertProfile(ctx context.Context, userID, key, value string) error {
	if m.UpsertProfileFunc != nil {
		return m.UpsertProfileFunc(ctx, userID, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Profiles[userID] == nil {
		m.Profiles[userID] = make(map[string]string)
	}
	m.Profiles[userID][key] = value
	return nil
}

func (m *Mock) DeleteBySession(ctx context.Context, sessionID string) error {
	if m.DeleteBySessionFunc != nil {
		return m.DeleteBySessionFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, sessionID)
	kept := m.Messages[:0]
	for _, msg := range m.Messages {
		if msg.SessionID != sessionID {
			kept = append(kept, msg)
		}
	}
	m.Messages = kept
	return nil
}

func (m *Mock) Close() {}

var _ Store = (*Mock)(nil)
