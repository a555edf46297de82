package store

import (
	"context"
	"testing"
)

func TestVectorLiteral(t *testing.T) {
	t.Run("formats pgvector input", func(t *testing.T) {
		got := vectorLiteral([]float32{1, -0.5, 0})
		want := "[1,-0.5,0]"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("single element", func(t *testing.T) {
		if got := vectorLiteral([]float32{0.25}); got != "[0.25]" {
			t.Errorf("expected [0.25], got %q", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := vectorLiteral(nil); got != "[]" {
			t.Errorf("expected [], got %q", got)
		}
	})
}

func TestMock(t *testing.T) {
	ctx := context.Background()

	t.Run("append then query recent newest first", func(t *testing.T) {
		m := NewMock()
		_ = m.Append(ctx, "s1", RoleUser, "first", nil)
		_ = m.Append(ctx, "s1", RoleAgent, "second", nil)
		_ = m.Append(ctx, "s2", RoleUser, "other session", nil)

		msgs, err := m.QueryRecent(ctx, "s1", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		if msgs[0].Text != "second" || msgs[1].Text != "first" {
			t.Errorf("expected newest first, got %q then %q", msgs[0].Text, msgs[1].Text)
		}
		if !msgs[0].CreatedAt.After(msgs[1].CreatedAt) {
			t.Error("timestamps should strictly increase per session")
		}
	})

	t.Run("upsert is last write wins", func(t *testing.T) {
		m := NewMock()
		_ = m.UpsertProfile(ctx, "u1", "name", "Asha")
		_ = m.UpsertProfile(ctx, "u1", "name", "Priya")

		facts, _ := m.GetProfile(ctx, "u1")
		if len(facts) != 1 {
			t.Fatalf("expected 1 fact, got %d", len(facts))
		}
		if facts[0].Value != "Priya" {
			t.Errorf("expected last write to win, got %q", facts[0].Value)
		}
	})

	t.Run("delete by session", func(t *testing.T) {
		m := NewMock()
		_ = m.Append(ctx, "s1", RoleUser, "hello", nil)
		_ = m.DeleteBySession(ctx, "s1")

		msgs, _ := m.QueryRecent(ctx, "s1", 10)
		if len(msgs) != 0 {
			t.Errorf("expected empty history after delete, got %d", len(msgs))
		}
	})
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	n := NewNoop()

	if err := n.Append(ctx, "s", RoleUser, "x", nil); err != nil {
		t.Errorf("append: %v", err)
	}
	if msgs, err := n.QueryRecent(ctx, "s", 4); err != nil || msgs != nil {
		t.Errorf("expected empty recent, got %v, %v", msgs, err)
	}
	if facts, err := n.GetProfile(ctx, "u"); err != nil || facts != nil {
		t.Errorf("expected empty profile, got %v, %v", facts, err)
	}
}
