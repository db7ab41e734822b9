package engine

import (
	"context"
	"sync"
)

// TokenStream is a pull-based, single-pass iterator over generated text
// fragments. The producer goroutine stops when the stream is closed, so a
// caller can abandon the stream without leaking backend resources.
type TokenStream struct {
	ch     chan string
	cancel context.CancelFunc
	model  string

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// Model returns the name of the model producing this stream.
func (s *TokenStream) Model() string { return s.model }

// Next returns the next non-empty fragment. ok is false once the sequence is
// exhausted; check Err afterwards to distinguish completion from failure.
func (s *TokenStream) Next() (string, bool) {
	tok, ok := <-s.ch
	return tok, ok
}

// Err reports a backend failure observed during generation, nil on a clean
// finish or cancellation.
func (s *TokenStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *TokenStream) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Close stops the backend generation and drains remaining fragments so the
// producer can release the in-flight slot. Safe to call more than once.
func (s *TokenStream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.ch {
		}
	})
}
