package bridge

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/persona"
	"inferd/internal/resolver"
	"inferd/pkg/types"
)

type fakeAdapter struct {
	session engine.Session
}

func (a *fakeAdapter) New(path string, opts engine.Options) (engine.Session, error) {
	return a.session, nil
}

type fakeSession struct {
	tokens []string
	// gate, when non-nil, blocks Predict after the first token until closed
	// or the context is canceled.
	gate    chan struct{}
	mu      sync.Mutex
	lastErr error
}

func (s *fakeSession) Predict(ctx context.Context, prompt string, params engine.Params, onToken func(string) bool) (engine.Result, error) {
	var b strings.Builder
	for i, tok := range s.tokens {
		if onToken != nil && !onToken(tok) {
			break
		}
		b.WriteString(tok)
		if s.gate != nil && i == 0 {
			select {
			case <-s.gate:
			case <-ctx.Done():
				s.mu.Lock()
				s.lastErr = ctx.Err()
				s.mu.Unlock()
				return engine.Result{}, ctx.Err()
			}
		}
	}
	return engine.Result{Content: b.String(), FinishReason: "stop"}, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) canceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr != nil
}

func dial(t *testing.T, session engine.Session) (*websocket.Conn, *engine.Engine, func()) {
	t.Helper()
	modelsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(modelsDir, "alpha.gguf"), []byte("w"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	catalog := []types.ModelDescriptor{{Name: "alpha", File: "alpha.gguf"}}
	eng := engine.New(&fakeAdapter{session: session}, modelsDir, catalog, engine.Options{}, zerolog.Nop())
	personas := persona.NewStore(t.TempDir(), zerolog.Nop())
	res := resolver.New(personas, eng, zerolog.Nop())
	h := NewHandler(eng, res, zerolog.Nop())

	srv := httptest.NewServer(h)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, eng, func() {
		conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestLoadModelCommand(t *testing.T) {
	conn, eng, cleanup := dial(t, &fakeSession{tokens: []string{"x"}})
	defer cleanup()

	if err := conn.WriteJSON(Command{Type: "load_model", Model: "alpha"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != "model_loaded" || ev.Model != "alpha" {
		t.Fatalf("event %+v", ev)
	}
	if eng.CurrentModel() != "alpha" {
		t.Fatalf("slot %q", eng.CurrentModel())
	}

	if err := conn.WriteJSON(Command{Type: "load_model", Model: "ghost"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "error" {
		t.Fatalf("expected error event, got %+v", ev)
	}
}

func TestGenerateCommand(t *testing.T) {
	conn, _, cleanup := dial(t, &fakeSession{tokens: []string{"Hello", ", ", "world"}})
	defer cleanup()

	if err := conn.WriteJSON(Command{
		Type:     "generate",
		Model:    "alpha",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != "generation_start" || ev.Model != "alpha" || ev.SessionID == "" {
		t.Fatalf("start event %+v", ev)
	}
	session := ev.SessionID

	var text string
	for {
		ev = readEvent(t, conn)
		if ev.Type == "generation_complete" {
			break
		}
		if ev.Type != "token" || ev.SessionID != session {
			t.Fatalf("unexpected event %+v", ev)
		}
		text += ev.Token
		if ev.TextSoFar != text {
			t.Fatalf("text_so_far %q, accumulated %q", ev.TextSoFar, text)
		}
	}
	if ev.Text != "Hello, world" || ev.FinishReason != "stop" {
		t.Fatalf("complete event %+v", ev)
	}
}

func TestStatusCommand(t *testing.T) {
	conn, eng, cleanup := dial(t, &fakeSession{tokens: []string{"x"}})
	defer cleanup()

	if !eng.LoadModel("alpha") {
		t.Fatal("load alpha")
	}
	if err := conn.WriteJSON(Command{Type: "status"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != "status" || ev.Health == nil || !ev.Health.Ready || ev.Model != "alpha" {
		t.Fatalf("status event %+v", ev)
	}
}

func TestUnknownCommand(t *testing.T) {
	conn, _, cleanup := dial(t, &fakeSession{tokens: []string{"x"}})
	defer cleanup()

	if err := conn.WriteJSON(Command{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != "error" || !strings.Contains(ev.Message, "dance") {
		t.Fatalf("event %+v", ev)
	}
}

func TestGenerateUnknownModel(t *testing.T) {
	conn, _, cleanup := dial(t, &fakeSession{tokens: []string{"x"}})
	defer cleanup()

	if err := conn.WriteJSON(Command{
		Type:     "generate",
		Model:    "ghost",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("event %+v", ev)
	}
	// The session stays usable after a rejected command.
	if err := conn.WriteJSON(Command{Type: "status"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "status" {
		t.Fatalf("event %+v", ev)
	}
}

func TestDisconnectCancelsGeneration(t *testing.T) {
	gate := make(chan struct{})
	session := &fakeSession{tokens: []string{"a", "b", "c"}, gate: gate}
	conn, eng, cleanup := dial(t, session)
	defer cleanup()

	if err := conn.WriteJSON(Command{
		Type:     "generate",
		Model:    "alpha",
		Messages: []types.ChatMessage{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "generation_start" {
		t.Fatalf("event %+v", ev)
	}
	// Drop the connection while the backend is mid-prediction.
	conn.Close()

	// The engine slot must come free once the handler notices. LoadModel
	// refuses while a generation is in flight, so it doubles as a probe.
	deadline := time.Now().Add(2 * time.Second)
	for !eng.LoadModel("alpha") {
		if time.Now().After(deadline) {
			t.Fatal("slot never came free after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !session.canceled() {
		t.Fatal("backend prediction was not canceled")
	}
}
