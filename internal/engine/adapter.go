package engine

import (
	"context"

	"inferd/pkg/types"
)

// Adapter abstracts the inference backend. Concrete implementations
// (go-llama.cpp) satisfy this interface behind the 'llama' build tag.
type Adapter interface {
	// New constructs a backend handle for the model file at path.
	New(path string, opts Options) (Session, error)
}

// Options carries backend construction parameters.
type Options struct {
	CtxSize   int
	Threads   int
	GPULayers int
}

// Params captures generation parameters for one request.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

// Result summarizes a completed generation.
type Result struct {
	Content      string
	Usage        types.Usage
	FinishReason string
}

// Session is a loaded model handle.
type Session interface {
	// Predict runs a generation. When onToken is non-nil it is invoked for
	// each produced text fragment; returning false stops generation.
	// Implementations must stop when ctx is canceled.
	Predict(ctx context.Context, prompt string, params Params, onToken func(string) bool) (Result, error)
	// Close releases the handle. Idempotent.
	Close() error
}
