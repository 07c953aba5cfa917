package dom

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/net/html"
)

// Event is delivered to listeners. Ctx carries the turn of the dispatcher,
// so a listener may run nested exchanges without deadlocking.
type Event struct {
	Type   string
	Target *html.Node
	Ctx    context.Context
}

// Listener handles a dispatched event.
type Listener func(*Event)

type listener struct {
	id uint64
	fn Listener
}

// AddEventListener registers fn for events of the given type and returns a
// function that removes it.
func (d *Document) AddEventListener(typ string, fn Listener) (remove func()) {
	d.lmu.Lock()
	d.nextLID++
	id := d.nextLID
	d.listeners[typ] = append(d.listeners[typ], &listener{id: id, fn: fn})
	d.lmu.Unlock()

	return func() {
		d.lmu.Lock()
		defer d.lmu.Unlock()
		d.listeners[typ] = slices.DeleteFunc(d.listeners[typ], func(l *listener) bool { return l.id == id })
	}
}

// DispatchEvent invokes every listener for typ synchronously, in
// registration order, and returns how many ran. A panicking listener is
// logged and does not stop the others.
func (d *Document) DispatchEvent(ctx context.Context, typ string, target *html.Node) int {
	d.lmu.Lock()
	ls := slices.Clone(d.listeners[typ])
	d.lmu.Unlock()

	ev := &Event{Type: typ, Target: target, Ctx: ctx}
	for _, l := range ls {
		d.invoke(l, ev)
	}
	return len(ls)
}

func (d *Document) invoke(l *listener, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dom: listener panicked", "event", ev.Type, "error", fmt.Sprint(r))
		}
	}()
	l.fn(ev)
}
