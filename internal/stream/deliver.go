package stream

import (
	"context"
)

// Source is the producing side of a token stream. Next blocks until a token
// is available and reports false on exhaustion; Err is meaningful only after
// exhaustion.
type Source interface {
	Next() (string, bool)
	Err() error
}

// Deliver drains src into sw until exhaustion, the context is canceled, or a
// write fails. It always attempts to terminate the event sequence so a
// well-behaved client never waits forever: backend failures surface as an
// in-band error event followed by the terminal marker.
func Deliver(ctx context.Context, sw *Writer, src Source) error {
	if err := sw.Start(); err != nil {
		return err
	}
	for {
		tok, ok := src.Next()
		if !ok {
			break
		}
		if err := sw.Chunk(ctx, tok); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := src.Err(); err != nil {
		sw.log.Error().Err(err).Msg("generation failed mid-stream")
		return sw.Error(err.Error())
	}
	return sw.Done("stop")
}
