package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Engine owns at most one loaded model handle. State transitions are guarded
// by an explicit mutex and generation is single-flight: a size-1 channel
// rejects a second generate while one is in progress, and a load attempted
// while a generation holds the slot fails instead of pulling the handle out
// from under the stream.
type Engine struct {
	mu        sync.Mutex
	adapter   Adapter
	opts      Options
	modelsDir string
	catalog   []types.ModelDescriptor
	byName    map[string]types.ModelDescriptor
	sess      Session
	current   string
	ready     bool
	genCh     chan struct{} // size 1: single in-flight generation or load
	log       zerolog.Logger
}

// New constructs an engine over the given catalog. The catalog can be
// replaced wholesale later via SetCatalog.
func New(adapter Adapter, modelsDir string, catalog []types.ModelDescriptor, opts Options, log zerolog.Logger) *Engine {
	e := &Engine{
		adapter:   adapter,
		opts:      opts,
		modelsDir: modelsDir,
		genCh:     make(chan struct{}, 1),
		log:       log.With().Str("component", "engine").Logger(),
	}
	e.SetCatalog(catalog)
	return e
}

// SetCatalog replaces the set of loadable models. A currently loaded model
// stays loaded even if its descriptor disappears from the new catalog.
func (e *Engine) SetCatalog(catalog []types.ModelDescriptor) {
	byName := make(map[string]types.ModelDescriptor, len(catalog))
	cp := make([]types.ModelDescriptor, len(catalog))
	copy(cp, catalog)
	for _, d := range cp {
		byName[d.Name] = d
	}
	e.mu.Lock()
	e.catalog = cp
	e.byName = byName
	e.mu.Unlock()
}

// Models returns a copy of the catalog.
func (e *Engine) Models() []types.ModelDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.ModelDescriptor, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// CurrentModel returns the loaded model name, empty when none.
func (e *Engine) CurrentModel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// LoadModel loads name into the slot. Unknown names, missing model files and
// backend construction failures all return false; nothing panics out of here.
// Refuses to run while a generation is in flight.
func (e *Engine) LoadModel(name string) bool {
	select {
	case e.genCh <- struct{}{}:
	default:
		e.log.Error().Str("model", name).Msg("load refused: generation in flight")
		loadFailuresTotal.WithLabelValues("busy").Inc()
		return false
	}
	defer func() { <-e.genCh }()

	e.mu.Lock()
	defer e.mu.Unlock()

	desc, ok := e.byName[name]
	if !ok {
		e.log.Error().Str("model", name).Msg("model not found in catalog")
		loadFailuresTotal.WithLabelValues("not_found").Inc()
		return false
	}
	path := filepath.Join(e.modelsDir, desc.File)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() || fi.Size() == 0 {
		e.log.Error().Str("model", name).Str("path", path).Msg("model file missing")
		loadFailuresTotal.WithLabelValues("file_missing").Inc()
		return false
	}

	// Release the previous handle before constructing the new one: at most
	// one handle is live at any point.
	if e.sess != nil {
		_ = e.sess.Close()
		e.sess = nil
		e.current = ""
		e.ready = false
	}

	start := time.Now()
	sess, err := e.adapter.New(path, e.opts)
	if err != nil {
		e.log.Error().Err(err).Str("model", name).Msg("backend initialization failed")
		loadFailuresTotal.WithLabelValues("backend_init").Inc()
		return false
	}
	e.sess = sess
	e.current = name
	e.ready = true
	loadsTotal.Inc()
	e.log.Info().Str("model", name).Dur("dur", time.Since(start)).Msg("model loaded")
	return true
}

// EnsureLoaded is a no-op when name is already the loaded model, otherwise
// it delegates to LoadModel.
func (e *Engine) EnsureLoaded(name string) bool {
	e.mu.Lock()
	loaded := e.ready && e.current == name
	e.mu.Unlock()
	if loaded {
		return true
	}
	return e.LoadModel(name)
}

// Unload releases the held handle. Waits for an in-flight generation to
// finish rather than tearing the handle away from it. Idempotent.
func (e *Engine) Unload() {
	e.genCh <- struct{}{}
	defer func() { <-e.genCh }()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		_ = e.sess.Close()
		e.sess = nil
		e.log.Info().Str("model", e.current).Msg("model unloaded")
	}
	e.current = ""
	e.ready = false
}

// Health is a pure read of the slot state.
func (e *Engine) Health() types.HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return types.HealthStatus{
		ModelLoaded:     e.sess != nil,
		CurrentModel:    e.current,
		AvailableModels: len(e.catalog),
		Ready:           e.ready,
	}
}

// Generate runs a blocking generation and returns the complete response.
func (e *Engine) Generate(ctx context.Context, prompt string, params Params) (*types.ChatResponse, error) {
	select {
	case e.genCh <- struct{}{}:
	default:
		return nil, ErrEngineBusy()
	}
	defer func() { <-e.genCh }()

	sess, model, err := e.session()
	if err != nil {
		return nil, err
	}
	generationsTotal.WithLabelValues("blocking").Inc()
	params.Stop = withDefaultStops(params.Stop)

	res, err := sess.Predict(ctx, prompt, params, nil)
	if err != nil {
		return nil, err
	}
	finish := res.FinishReason
	if finish == "" {
		finish = "stop"
	}
	return &types.ChatResponse{
		Choices: []types.ChatChoice{{
			Message:      types.ChatMessage{Role: "assistant", Content: strings.TrimSpace(res.Content)},
			FinishReason: finish,
		}},
		Model: model,
		Usage: res.Usage,
	}, nil
}

// GenerateStream starts a streaming generation and returns a pull-based
// token stream. The single-flight slot is held until the stream is exhausted
// or closed. Empty fragments from the backend are filtered out.
func (e *Engine) GenerateStream(ctx context.Context, prompt string, params Params) (*TokenStream, error) {
	select {
	case e.genCh <- struct{}{}:
	default:
		return nil, ErrEngineBusy()
	}
	release := func() { <-e.genCh }

	sess, model, err := e.session()
	if err != nil {
		release()
		return nil, err
	}
	generationsTotal.WithLabelValues("streaming").Inc()
	params.Stop = withDefaultStops(params.Stop)

	genCtx, cancel := context.WithCancel(ctx)
	ts := &TokenStream{
		ch:     make(chan string, 8),
		cancel: cancel,
		model:  model,
	}
	go func() {
		// Release the slot before closing the channel so that a consumer
		// observing exhaustion sees a free engine.
		defer func() {
			release()
			close(ts.ch)
		}()
		_, err := sess.Predict(genCtx, prompt, params, func(tok string) bool {
			if tok == "" {
				return true
			}
			select {
			case ts.ch <- tok:
				tokensStreamedTotal.Inc()
				return true
			case <-genCtx.Done():
				return false
			}
		})
		if err != nil && genCtx.Err() == nil {
			ts.setErr(err)
		}
	}()
	return ts, nil
}

// session snapshots the current handle under the mutex.
func (e *Engine) session() (Session, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready || e.sess == nil {
		return nil, "", ErrNotReady()
	}
	return e.sess, e.current, nil
}

func withDefaultStops(stop []string) []string {
	out := make([]string, 0, len(stop)+len(defaultStop))
	out = append(out, stop...)
	for _, s := range defaultStop {
		dup := false
		for _, have := range out {
			if have == s {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
