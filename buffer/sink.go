package buffer

import (
	"context"

	"github.com/kentyler/recall/core"
)

// TurnSink receives every draft a buffer flushes.
// Errors are logged by the buffer and never stop buffering.
type TurnSink interface {
	Accept(ctx context.Context, draft *core.Draft) error
}

// SinkFunc adapts a function to a TurnSink.
type SinkFunc func(ctx context.Context, draft *core.Draft) error

// Accept calls f(ctx, draft).
func (f SinkFunc) Accept(ctx context.Context, draft *core.Draft) error {
	return f(ctx, draft)
}

// Discard is a TurnSink that drops every draft.
var Discard TurnSink = SinkFunc(func(context.Context, *core.Draft) error { return nil })
