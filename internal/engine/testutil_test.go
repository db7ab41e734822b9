package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// fakeAdapter records handle lifecycle events so tests can assert ordering
// (release-before-construct) and the single-handle invariant.
type fakeAdapter struct {
	mu      sync.Mutex
	events  []string
	open    int
	failNew bool

	tokens     []string
	predictErr error
	lastParams Params
}

func (a *fakeAdapter) New(path string, opts Options) (Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNew {
		a.events = append(a.events, "fail:"+filepath.Base(path))
		return nil, ErrBackendUnavailable("construction failed")
	}
	a.events = append(a.events, "new:"+filepath.Base(path))
	a.open++
	return &fakeSession{adapter: a, name: filepath.Base(path)}, nil
}

func (a *fakeAdapter) log() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	copy(out, a.events)
	return out
}

func (a *fakeAdapter) openHandles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

type fakeSession struct {
	adapter *fakeAdapter
	name    string
	closed  bool
}

func (s *fakeSession) Predict(ctx context.Context, prompt string, params Params, onToken func(string) bool) (Result, error) {
	s.adapter.mu.Lock()
	s.adapter.lastParams = params
	tokens := s.adapter.tokens
	predictErr := s.adapter.predictErr
	s.adapter.mu.Unlock()

	var out []byte
	for _, tok := range tokens {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		if onToken != nil {
			if !onToken(tok) {
				return Result{Content: string(out)}, nil
			}
		}
		out = append(out, tok...)
	}
	if predictErr != nil {
		return Result{}, predictErr
	}
	return Result{Content: string(out), FinishReason: "stop"}, nil
}

func (s *fakeSession) Close() error {
	s.adapter.mu.Lock()
	defer s.adapter.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.adapter.open--
		s.adapter.events = append(s.adapter.events, "close:"+s.name)
	}
	return nil
}

// newTestEngine builds an engine over a temp models dir containing the named
// model files, one catalog entry per file.
func newTestEngine(t *testing.T, adapter *fakeAdapter, names ...string) *Engine {
	t.Helper()
	dir := t.TempDir()
	catalog := make([]types.ModelDescriptor, 0, len(names))
	for _, n := range names {
		file := n + ".gguf"
		if err := os.WriteFile(filepath.Join(dir, file), []byte("weights"), 0o644); err != nil {
			t.Fatalf("write model file: %v", err)
		}
		catalog = append(catalog, types.ModelDescriptor{Name: n, File: file})
	}
	return New(adapter, dir, catalog, Options{CtxSize: 2048, Threads: 4}, zerolog.Nop())
}
