package notify

import "context"

// Func delivers changes through a Go function call, for consumers living
// in the same process.
type Func func(ctx context.Context, c Change) error

func (f Func) Send(ctx context.Context, c Change) error { return f(ctx, c) }

func (f Func) Close() error { return nil }
