package store

import "context"

// Noop implements Store with no persistence. It is used when no database
// is configured: every query returns empty and every write is discarded,
// so the turn pipeline runs context-free without special cases.
type Noop struct{}

// NewNoop creates a no-op store.
func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) Append(ctx context.Context, sessionID string, role Role, text string, embedding []float32) error {
	return nil
}

func (*Noop) QueryRecent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	return nil, nil
}

func (*Noop) QuerySimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Message, error) {
	return nil, nil
}

func (*Noop) GetProfile(ctx context.Context, userID string) ([]Fact, error) {
	return nil, nil
}

func (*Noop) UpsertProfile(ctx context.Context, userID, key, value string) error {
	return nil
}

func (*Noop) DeleteBySession(ctx context.Context, sessionID string) error {
	return nil
}

func (*Noop) Close() {}

var _ Store = (*Noop)(nil)
