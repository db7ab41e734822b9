package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

type sliceSource struct {
	tokens []string
	i      int
	err    error
}

func (s *sliceSource) Next() (string, bool) {
	if s.i >= len(s.tokens) {
		return "", false
	}
	t := s.tokens[s.i]
	s.i++
	return t, true
}

func (s *sliceSource) Err() error { return s.err }

func newTestWriter(t *testing.T, mode string) (*Writer, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, "tinymodel", mode, time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	return sw, rec
}

// events parses every data: frame in an SSE body, excluding the [DONE]
// marker and comment lines.
func events(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			continue
		}
		out = append(out, payload)
	}
	return out
}

func TestDeliverFramesInOrder(t *testing.T) {
	sw, rec := newTestWriter(t, types.DeliveryDirect)
	src := &sliceSource{tokens: []string{"Hello", ", ", "world"}}
	if err := Deliver(context.Background(), sw, src); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	body := rec.Body.String()

	frames := events(t, body)
	// Role chunk + 3 content chunks + finish chunk.
	if len(frames) != 5 {
		t.Fatalf("expected 5 events, got %d:\n%s", len(frames), body)
	}

	var first types.StreamChunk
	if err := json.Unmarshal([]byte(frames[0]), &first); err != nil {
		t.Fatalf("opening chunk: %v", err)
	}
	if first.Choices[0].Delta.Role != "assistant" || first.Choices[0].Delta.Content != "" {
		t.Fatalf("opening chunk should carry role only: %s", frames[0])
	}
	var got strings.Builder
	for _, f := range frames[1:4] {
		var c types.StreamChunk
		if err := json.Unmarshal([]byte(f), &c); err != nil {
			t.Fatalf("content chunk: %v", err)
		}
		got.WriteString(c.Choices[0].Delta.Content)
	}
	if got.String() != "Hello, world" {
		t.Fatalf("reassembled %q", got.String())
	}
	var last types.StreamChunk
	if err := json.Unmarshal([]byte(frames[4]), &last); err != nil {
		t.Fatalf("final chunk: %v", err)
	}
	if last.Choices[0].FinishReason == nil || *last.Choices[0].FinishReason != "stop" {
		t.Fatalf("expected finish_reason stop: %s", frames[4])
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Fatalf("missing terminal marker:\n%s", body)
	}
}

func TestStartEmitsPaddingBeforeContent(t *testing.T) {
	sw, rec := newTestWriter(t, types.DeliveryProxied)
	if err := sw.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	body := rec.Body.String()
	idx := strings.Index(body, ": ")
	comment := ""
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, ": ") {
			comment = line
			break
		}
	}
	if idx < 0 || len(comment) < paddingSize {
		t.Fatalf("padding comment too small (%d bytes)", len(comment))
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type %q", got)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Fatalf("proxy buffering not disabled (%q)", got)
	}
}

func TestDeliverBackendFailureStillTerminates(t *testing.T) {
	sw, rec := newTestWriter(t, types.DeliveryDirect)
	src := &sliceSource{err: errors.New("backend exploded")}
	if err := Deliver(context.Background(), sw, src); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	body := rec.Body.String()

	if rec.Code != 200 {
		t.Fatalf("committed stream must stay 200, got %d", rec.Code)
	}
	var found bool
	for _, f := range events(t, body) {
		var se types.StreamError
		if json.Unmarshal([]byte(f), &se) == nil && se.Error.Message == "backend exploded" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no in-band error event:\n%s", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Fatalf("missing terminal marker after error:\n%s", body)
	}
}

func TestProxiedModePacesWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, "tinymodel", types.DeliveryProxied, 5*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := sw.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := sw.Chunk(context.Background(), "x"); err != nil {
			t.Fatalf("chunk: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("proxied writes not paced: %v", elapsed)
	}
}

func TestDirectModeDoesNotPace(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, "tinymodel", types.DeliveryDirect, 50*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := sw.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := sw.Chunk(context.Background(), "x"); err != nil {
			t.Fatalf("chunk: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Fatalf("direct writes paced: %v", elapsed)
	}
}

func TestChunkPacingHonorsContext(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec, "tinymodel", types.DeliveryProxied, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := sw.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sw.Chunk(ctx, "x"); err == nil {
		t.Fatal("expected context error from canceled pacing wait")
	}
}
