// Package store persists conversation history and user profile facts.
//
// The production backend is Postgres with the pgvector extension; see
// Postgres. A Noop backend keeps the server usable with history disabled,
// and Mock supports tests. All operations are remote, fallible, and
// independently callable — callers degrade per operation rather than
// failing a turn.
package store

import (
	"context"
	"errors"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is one immutable entry in the append-only conversation log.
type Message struct {
	SessionID string
	Role      Role
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// Fact is one durable key/value statement about a user.
type Fact struct {
	Key   string
	Value string
}

// Sentinel errors for the store package.
var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// Store is the persistent conversation store interface.
type Store interface {
	// Append adds a message to the conversation log.
	// embedding may be nil when the text was not embedded.
	Append(ctx context.Context, sessionID string, role Role, text string, embedding []float32) error

	// QueryRecent returns up to limit messages for the session,
	// most recent first.
	QueryRecent(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// QuerySimilar returns up to limit messages whose embedding has cosine
	// similarity >= threshold to the given vector, most similar first.
	QuerySimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Message, error)

	// GetProfile returns every fact stored for the user.
	GetProfile(ctx context.Context, userID string) ([]Fact, error)

	// UpsertProfile writes one fact, last write wins per (user, key).
	UpsertProfile(ctx context.Context, userID, key, value string) error

	// DeleteBySession removes the session's entire conversation log.
	DeleteBySession(ctx context.Context, sessionID string) error

	// Close releases backend resources.
	Close()
}
