package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// paddingSize is the size of the SSE comment emitted right after the opening
// chunk. Reverse proxies and some HTTP clients hold small responses in a
// buffer; a ~2KB comment pushes the stream past typical buffer thresholds so
// the first real token reaches the caller immediately.
const paddingSize = 2048

// DefaultPace is the inter-chunk delay used in proxied mode when the caller
// does not configure one.
const DefaultPace = 10 * time.Millisecond

// Writer emits an OpenAI-style server-sent event sequence over an HTTP
// response. Not safe for concurrent use.
type Writer struct {
	w     http.ResponseWriter
	f     http.Flusher
	model string
	mode  string
	pace  time.Duration
	log   zerolog.Logger
}

// NewWriter prepares an SSE writer for the given response. Returns an error
// when the underlying ResponseWriter cannot flush, since an unflushable
// stream is indistinguishable from a stalled one.
func NewWriter(w http.ResponseWriter, model, mode string, pace time.Duration, log zerolog.Logger) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	if pace <= 0 {
		pace = DefaultPace
	}
	return &Writer{
		w:     w,
		f:     f,
		model: model,
		mode:  mode,
		pace:  pace,
		log:   log.With().Str("component", "stream").Logger(),
	}, nil
}

// Start commits the response: SSE headers, the zero-content role chunk, and
// the padding comment. After Start the status code is fixed and failures can
// only be reported in-band via Error.
func (sw *Writer) Start() error {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	sw.w.WriteHeader(http.StatusOK)

	if err := sw.event(types.StreamChunk{
		Model: sw.model,
		Choices: []types.StreamChoice{{
			Delta: types.StreamDelta{Role: "assistant"},
		}},
	}); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, ": %s\n\n", strings.Repeat(" ", paddingSize)); err != nil {
		return err
	}
	sw.f.Flush()
	return nil
}

// Chunk writes one content delta. In proxied mode the write is followed by a
// short context-aware pause so buffering intermediaries keep seeing forward
// progress instead of a single burst.
func (sw *Writer) Chunk(ctx context.Context, content string) error {
	if err := sw.event(types.StreamChunk{
		Model: sw.model,
		Choices: []types.StreamChoice{{
			Delta: types.StreamDelta{Content: content},
		}},
	}); err != nil {
		return err
	}
	sw.f.Flush()
	if sw.mode != types.DeliveryProxied {
		return nil
	}
	t := time.NewTimer(sw.pace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Done writes the closing chunk carrying the finish reason, then the
// terminal [DONE] marker.
func (sw *Writer) Done(finishReason string) error {
	if err := sw.event(types.StreamChunk{
		Model: sw.model,
		Choices: []types.StreamChoice{{
			FinishReason: &finishReason,
		}},
	}); err != nil {
		return err
	}
	if _, err := fmt.Fprint(sw.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	sw.f.Flush()
	return nil
}

// Error reports an in-band failure on an already-committed stream, then
// terminates the sequence so clients waiting on [DONE] are not left hanging.
func (sw *Writer) Error(msg string) error {
	var payload types.StreamError
	payload.Error.Message = msg
	payload.Error.Type = "generation_error"
	if err := sw.event(payload); err != nil {
		return err
	}
	return sw.Done("error")
}

func (sw *Writer) event(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(sw.w, "data: %s\n\n", data)
	return err
}
