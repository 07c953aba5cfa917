// Package bridge implements synchronous calls between two components that
// share nothing but a dom.Document.
//
// The caller writes a request into an attribute of a shared node and
// dispatches an event. Listeners run synchronously inside the dispatch, so
// the response attribute is readable as soon as DispatchEvent returns. The
// caller then clears both attributes. The whole exchange happens inside one
// document turn, which makes overlapping exchanges impossible.
package bridge

import (
	"context"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
)

// Channel names the event and attributes of one call surface.
type Channel struct {
	// Event is dispatched on the document for every exchange.
	Event string
	// RequestAttr carries the request. Empty means the exchange has no
	// request payload.
	RequestAttr string
	// ResponseAttr receives the response.
	ResponseAttr string
	// ReadyAttr, when set, is written "true" on the document element once
	// the calling side is installed.
	ReadyAttr string
}

// Well-known channels.
var (
	// Agent carries read/write review operations.
	Agent = Channel{
		Event:        "dr-api-request",
		RequestAttr:  "data-dr-api-request",
		ResponseAttr: "data-dr-api-response",
		ReadyAttr:    "data-dr-api-ready",
	}
	// Element asks for the component descriptor of the marked element.
	Element = Channel{
		Event:        "dr-detect-element",
		RequestAttr:  "data-dr-detect-target",
		ResponseAttr: "data-dr-result",
	}
	// Page asks which frameworks the page runs.
	Page = Channel{
		Event:        "dr-detect-page",
		ResponseAttr: "data-dr-frameworks",
	}
)

// Exchange runs one write/dispatch/read/clear round trip on node. It
// reports false when no listener wrote a response.
func Exchange(ctx context.Context, doc *dom.Document, node *html.Node, ch Channel, payload string) (string, bool) {
	var (
		raw string
		ok  bool
	)
	doc.Turn(ctx, func(ctx context.Context) {
		if ch.RequestAttr != "" {
			doc.SetAttr(node, ch.RequestAttr, payload)
		}
		doc.DispatchEvent(ctx, ch.Event, node)
		raw, ok = doc.Attr(node, ch.ResponseAttr)
		if ch.RequestAttr != "" {
			doc.RemoveAttr(node, ch.RequestAttr)
		}
		doc.RemoveAttr(node, ch.ResponseAttr)
	})
	return raw, ok && raw != ""
}

// Ready reports whether the calling side of ch is installed on doc.
func Ready(doc *dom.Document, ch Channel) bool {
	if ch.ReadyAttr == "" {
		return false
	}
	v, _ := doc.Attr(doc.DocumentElement(), ch.ReadyAttr)
	return v == "true"
}
