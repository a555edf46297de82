package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxa-labs/voxad/pkg/brain"
	"github.com/voxa-labs/voxad/pkg/embed"
	"github.com/voxa-labs/voxad/pkg/recall"
	"github.com/voxa-labs/voxad/pkg/store"
	"github.com/voxa-labs/voxad/pkg/synth"
	"github.com/voxa-labs/voxad/pkg/transcribe"
)

// fakeConn records every frame written to it, in order.
type fakeConn struct {
	mu         sync.Mutex
	frames     []writtenFrame
	failBinary bool
}

type writtenFrame struct {
	binary bool
	text   string
	data   []byte
}

func (f *fakeConn) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, writtenFrame{text: text})
	return nil
}

func (f *fakeConn) WriteBinary(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBinary {
		return errors.New("peer gone")
	}
	f.frames = append(f.frames, writtenFrame{binary: true, data: data})
	return nil
}

func (f *fakeConn) Frames() []writtenFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]writtenFrame, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) Texts() []string {
	var out []string
	for _, fr := range f.Frames() {
		if !fr.binary {
			out = append(out, fr.text)
		}
	}
	return out
}

// newTestSession builds a session around mocks; callers override fields
// on the returned collaborators before sending frames.
func newTestSession(t *testing.T) (*Session, *fakeConn, *transcribe.Mock, *brain.Mock, *synth.Mock, *store.Mock) {
	t.Helper()

	conn := &fakeConn{}
	transcriber := transcribe.NewMock("hello there")
	generator := brain.NewMock("hi!")
	provider := &synth.Mock{Chunks: [][]byte{[]byte("au"), []byte("dio")}}
	st := store.NewMock()
	embedder := embed.NewHashing(0)

	sess := New(Config{
		UserID:      "user-1",
		Conn:        conn,
		Transcriber: transcriber,
		Recall:      recall.NewEngine(st, embedder),
		Generator:   generator,
		Synth:       provider,
		Store:       st,
		Embedder:    embedder,
	})
	t.Cleanup(sess.Close)

	return sess, conn, transcriber, generator, provider, st
}

func TestSessionTurn(t *testing.T) {
	t.Run("emits the full frame sequence in order", func(t *testing.T) {
		sess, conn, _, _, _, _ := newTestSession(t)

		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		frames := conn.Frames()
		if len(frames) != 5 {
			t.Fatalf("got %d frames, want 5: %+v", len(frames), frames)
		}
		wantTexts := []string{"You said: hello there", NoticeThinking, "AI: hi!"}
		for i, want := range wantTexts {
			if frames[i].binary || frames[i].text != want {
				t.Errorf("frame %d = %+v, want text %q", i, frames[i], want)
			}
		}
		for i := 3; i < 5; i++ {
			if !frames[i].binary {
				t.Errorf("frame %d = %+v, want binary audio", i, frames[i])
			}
		}
		if string(frames[3].data)+string(frames[4].data) != "audio" {
			t.Errorf("audio = %q + %q", frames[3].data, frames[4].data)
		}

		if got := sess.State(); got != StateAwaitingAudio {
			t.Errorf("state after turn = %v, want awaiting_audio", got)
		}
	})

	t.Run("empty transcription short-circuits to not-understood", func(t *testing.T) {
		sess, conn, transcriber, generator, _, _ := newTestSession(t)
		transcriber.Transcript = ""

		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		if got := conn.Texts(); len(got) != 1 || got[0] != NoticeNotUnderstood {
			t.Errorf("texts = %q, want [%q]", got, NoticeNotUnderstood)
		}
		if len(generator.GenerateCalls) != 0 {
			t.Errorf("generator called %d times, want 0", len(generator.GenerateCalls))
		}
	})

	t.Run("transcription failure is the same as not understood", func(t *testing.T) {
		sess, conn, transcriber, _, _, _ := newTestSession(t)
		transcriber.TranscribeFunc = func(ctx context.Context, audio []byte) (string, error) {
			return "", transcribe.ErrBackend
		}

		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		if got := conn.Texts(); len(got) != 1 || got[0] != NoticeNotUnderstood {
			t.Errorf("texts = %q, want [%q]", got, NoticeNotUnderstood)
		}
	})

	t.Run("frames during an in-flight turn get a busy notice", func(t *testing.T) {
		sess, conn, transcriber, generator, _, _ := newTestSession(t)

		started := make(chan struct{})
		release := make(chan struct{})
		transcriber.TranscribeFunc = func(ctx context.Context, audio []byte) (string, error) {
			close(started)
			<-release
			return "hello there", nil
		}

		sess.HandleFrame([]byte("first"))
		<-started
		sess.HandleFrame([]byte("second"))

		if got := conn.Texts(); len(got) != 1 || got[0] != NoticeBusy {
			t.Errorf("texts during turn = %q, want [%q]", got, NoticeBusy)
		}

		close(release)
		sess.Wait()

		if len(generator.GenerateCalls) != 1 {
			t.Errorf("generator called %d times, want 1 (second frame rejected)", len(generator.GenerateCalls))
		}
	})

	t.Run("provider failure degrades the turn to text only", func(t *testing.T) {
		sess, conn, _, _, provider, _ := newTestSession(t)
		provider.StreamFunc = func(ctx context.Context, text string) (synth.AudioStream, error) {
			return nil, errors.New("synthesis down")
		}

		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		texts := conn.Texts()
		if len(texts) == 0 || texts[len(texts)-1] != NoticeNoAudio {
			t.Fatalf("texts = %q, want trailing %q", texts, NoticeNoAudio)
		}
		for _, fr := range conn.Frames() {
			if fr.binary {
				t.Errorf("unexpected binary frame %q after synthesis failure", fr.data)
			}
		}
	})

	t.Run("broken sink aborts audio and reports text only", func(t *testing.T) {
		sess, conn, _, _, _, _ := newTestSession(t)
		conn.failBinary = true

		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		texts := conn.Texts()
		if len(texts) == 0 || texts[len(texts)-1] != NoticeNoAudio {
			t.Errorf("texts = %q, want trailing %q", texts, NoticeNoAudio)
		}
	})

	t.Run("persists the exchange with embeddings", func(t *testing.T) {
		sess, _, _, _, _, st := newTestSession(t)

		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		if len(st.Messages) != 2 {
			t.Fatalf("persisted %d messages, want 2", len(st.Messages))
		}
		if st.Messages[0].Role != store.RoleUser || st.Messages[0].Text != "hello there" {
			t.Errorf("first message = %+v", st.Messages[0])
		}
		if st.Messages[1].Role != store.RoleAgent || st.Messages[1].Text != "hi!" {
			t.Errorf("second message = %+v", st.Messages[1])
		}
		for i, msg := range st.Messages {
			if len(msg.Embedding) == 0 {
				t.Errorf("message %d has no embedding", i)
			}
			if msg.SessionID != "user-1" {
				t.Errorf("message %d keyed by %q, want user id", i, msg.SessionID)
			}
		}
	})

	t.Run("store failure never reaches the client", func(t *testing.T) {
		sess, conn, _, _, _, st := newTestSession(t)
		st.AppendFunc = func(ctx context.Context, sessionID string, role store.Role, text string, embedding []float32) error {
			return store.ErrUnavailable
		}
		st.GetProfileFunc = func(ctx context.Context, userID string) ([]store.Fact, error) {
			return nil, store.ErrUnavailable
		}
		st.QueryRecentFunc = func(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
			return nil, store.ErrUnavailable
		}

		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		for _, text := range conn.Texts() {
			if strings.Contains(text, "unavailable") {
				t.Errorf("store failure leaked to client: %q", text)
			}
		}
		if got := conn.Texts()[2]; got != "AI: hi!" {
			t.Errorf("reply = %q, want normal reply despite store outage", got)
		}
	})

	t.Run("learned fact reaches the next turn even outside the recency window", func(t *testing.T) {
		sess, _, transcriber, generator, _, _ := newTestSession(t)

		generator.ExtractFactsFunc = func(ctx context.Context, exchange string) []store.Fact {
			if strings.Contains(exchange, "Asha") {
				return []store.Fact{{Key: "name", Value: "Asha"}}
			}
			return nil
		}

		transcriber.Transcript = "My name is Asha"
		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		transcriber.Transcript = "What is my name?"
		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		call := generator.LastGenerate()
		if call == nil {
			t.Fatal("no generate calls recorded")
		}
		found := false
		for _, fact := range call.Facts {
			if fact.Key == "name" && fact.Value == "Asha" {
				found = true
			}
		}
		if !found {
			t.Errorf("facts = %+v, want name=Asha", call.Facts)
		}
	})

	t.Run("close cancels an in-flight turn", func(t *testing.T) {
		sess, _, transcriber, generator, _, _ := newTestSession(t)

		started := make(chan struct{})
		transcriber.TranscribeFunc = func(ctx context.Context, audio []byte) (string, error) {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}

		sess.HandleFrame([]byte("pcm"))
		<-started

		done := make(chan struct{})
		go func() {
			sess.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Close did not unblock the in-flight turn")
		}

		if got := sess.State(); got != StateDisconnected {
			t.Errorf("state = %v, want disconnected", got)
		}
		if len(generator.GenerateCalls) != 0 {
			t.Errorf("generator called after disconnect")
		}
	})

	t.Run("frames after close are dropped silently", func(t *testing.T) {
		sess, conn, _, _, _, _ := newTestSession(t)

		sess.Close()
		sess.HandleFrame([]byte("pcm"))
		sess.Wait()

		if got := conn.Frames(); len(got) != 0 {
			t.Errorf("frames after close = %+v, want none", got)
		}
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	a := New(Config{UserID: "a", Conn: &fakeConn{}, Transcriber: transcribe.NewMock(""),
		Generator: brain.NewMock(""), Synth: &synth.Mock{}, Store: store.NewMock(),
		Embedder: embed.NewHashing(0), Recall: recall.NewEngine(store.NewMock(), embed.NewHashing(0))})
	b := New(Config{UserID: "b", Conn: &fakeConn{}, Transcriber: transcribe.NewMock(""),
		Generator: brain.NewMock(""), Synth: &synth.Mock{}, Store: store.NewMock(),
		Embedder: embed.NewHashing(0), Recall: recall.NewEngine(store.NewMock(), embed.NewHashing(0))})
	defer a.Close()
	defer b.Close()

	reg.Add(a)
	reg.Add(b)

	if got := reg.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	if got := reg.Get(a.ID); got != a {
		t.Errorf("Get(%q) = %v, want session a", a.ID, got)
	}

	reg.Remove(a.ID)
	if got := reg.Count(); got != 1 {
		t.Errorf("Count after remove = %d, want 1", got)
	}
	if got := reg.Get(a.ID); got != nil {
		t.Errorf("Get removed id = %v, want nil", got)
	}
	if got := len(reg.Snapshot()); got != 1 {
		t.Errorf("Snapshot length = %d, want 1", got)
	}
}
