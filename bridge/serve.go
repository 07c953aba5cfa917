package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
)

// Handler answers calls arriving over a channel.
type Handler interface {
	ServeBridge(ctx context.Context, call Call) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call Call) Response

func (f HandlerFunc) ServeBridge(ctx context.Context, call Call) Response { return f(ctx, call) }

// Serve installs h as the answering side of ch on doc and returns a
// function that uninstalls it. Malformed requests and handler panics are
// answered with error responses instead of escaping the dispatch.
func Serve(doc *dom.Document, ch Channel, h Handler, logger *slog.Logger) (stop func()) {
	if logger == nil {
		logger = slog.Default()
	}
	return doc.AddEventListener(ch.Event, func(ev *dom.Event) {
		node := doc.DocumentElement()
		raw, ok := doc.Attr(node, ch.RequestAttr)
		if !ok || raw == "" {
			return
		}

		var call Call
		if err := json.Unmarshal([]byte(raw), &call); err != nil {
			write(doc, node, ch, Fail("", "Invalid request JSON"), logger)
			return
		}
		write(doc, node, ch, dispatch(ev.Ctx, h, call, logger), logger)
	})
}

func dispatch(ctx context.Context, h Handler, call Call, logger *slog.Logger) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bridge: handler panicked", "method", call.Method, "error", fmt.Sprint(r))
			resp = Fail(call.RequestID, fmt.Sprintf("Internal error: %v", r))
		}
	}()
	return h.ServeBridge(ctx, call)
}

func write(doc *dom.Document, node *html.Node, ch Channel, resp Response, logger *slog.Logger) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("bridge: encode response", "error", err)
		return
	}
	doc.SetAttr(node, ch.ResponseAttr, string(data))
}
