package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on Postgres with the pgvector extension.
//
// Expected schema (provisioned externally):
//
//	CREATE TABLE conversation_history (
//	    id         bigserial PRIMARY KEY,
//	    session_id text NOT NULL,
//	    role       text NOT NULL,
//	    text       text NOT NULL,
//	    embedding  vector(384),
//	    created_at timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE TABLE user_profile (
//	    user_id text NOT NULL,
//	    key     text NOT NULL,
//	    value   text NOT NULL,
//	    PRIMARY KEY (user_id, key)
//	);
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to the database and verifies reachability.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Postgres{
		pool:   pool,
		logger: slog.Default().With("component", "store.postgres"),
	}, nil
}

// Append adds a message to the conversation log.
func (p *Postgres) Append(ctx context.Context, sessionID string, role Role, text string, embedding []float32) error {
	var vec any
	if len(embedding) > 0 {
		vec = vectorLiteral(embedding)
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO conversation_history (session_id, role, text, embedding)
		 VALUES ($1, $2, $3, $4::vector)`,
		sessionID, string(role), text, vec)
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// QueryRecent returns up to limit messages for the session, newest first.
func (p *Postgres) QueryRecent(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT role, text, created_at
		 FROM conversation_history
		 WHERE session_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m := Message{SessionID: sessionID}
		var role string
		if err := rows.Scan(&role, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan recent: %w", err)
		}
		m.Role = Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	return msgs, nil
}

// QuerySimilar returns up to limit messages with cosine similarity >= threshold.
func (p *Postgres) QuerySimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Message, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	vec := vectorLiteral(embedding)

	// <=> is pgvector cosine distance; similarity = 1 - distance.
	rows, err := p.pool.Query(ctx,
		`SELECT session_id, role, text, created_at
		 FROM conversation_history
		 WHERE embedding IS NOT NULL
		   AND 1 - (embedding <=> $1::vector) >= $2
		 ORDER BY embedding <=> $1::vector
		 LIMIT $3`,
		vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query similar: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.SessionID, &role, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan similar: %w", err)
		}
		m.Role = Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query similar: %w", err)
	}
	return msgs, nil
}

// GetProfile returns every fact for the user, ordered by key.
func (p *Postgres) GetProfile(ctx context.Context, userID string) ([]Fact, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, value FROM user_profile WHERE user_id = $1 ORDER BY key`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.Key, &f.Value); err != nil {
			return nil, fmt.Errorf("store: scan profile: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	return facts, nil
}

// UpsertProfile writes one fact, last write wins per (user, key).
func (p *Postgres) UpsertProfile(ctx context.Context, userID, key, value string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO user_profile (user_id, key, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`,
		userID, key, value)
	if err != nil {
		return fmt.Errorf("store: upsert profile: %w", err)
	}
	return nil
}

// DeleteBySession removes the session's conversation log.
func (p *Postgres) DeleteBySession(ctx context.Context, sessionID string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM conversation_history WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	p.logger.Info("cleared session history",
		"session_id", sessionID,
		"rows", tag.RowsAffected(),
	)
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// vectorLiteral renders an embedding in pgvector's input format: [1,2,3].
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

var _ Store = (*Postgres)(nil)
