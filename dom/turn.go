package dom

import "context"

type turnKey struct{}

type heldTurn struct {
	doc  *Document
	next *heldTurn
}

// Turn runs fn as one uninterruptible unit of page work. Turns of the same
// document never interleave. fn receives a context marking the turn as
// held; calling Turn again with that context runs inline instead of
// blocking, which is how a listener answers a request dispatched by the
// turn that is waiting on it.
func (d *Document) Turn(ctx context.Context, fn func(ctx context.Context)) {
	if d.InTurn(ctx) {
		fn(ctx)
		return
	}
	d.turn.Lock()
	defer d.turn.Unlock()
	prev, _ := ctx.Value(turnKey{}).(*heldTurn)
	fn(context.WithValue(ctx, turnKey{}, &heldTurn{doc: d, next: prev}))
}

// InTurn reports whether ctx already holds a turn of d.
func (d *Document) InTurn(ctx context.Context) bool {
	h, _ := ctx.Value(turnKey{}).(*heldTurn)
	for ; h != nil; h = h.next {
		if h.doc == d {
			return true
		}
	}
	return false
}
