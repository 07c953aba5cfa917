package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/idgen"
)

// Messages of the responses a Client synthesizes itself.
const (
	ErrNoResponse      = "No response from bridge. Is the review handler attached?"
	ErrInvalidResponse = "Invalid response: "
)

// Client issues calls over a channel.
type Client struct {
	doc    *dom.Document
	ch     Channel
	newID  idgen.Generator
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.logger = l } }

// WithRequestIDs overrides the request id generator.
func WithRequestIDs(gen idgen.Generator) ClientOption { return func(c *Client) { c.newID = gen } }

// NewClient returns a client calling over ch on doc.
func NewClient(doc *dom.Document, ch Channel, opts ...ClientOption) *Client {
	c := &Client{
		doc:    doc,
		ch:     ch,
		newID:  idgen.Prefixed("req_", idgen.UUIDv7()),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Announce marks the calling side installed on the document element.
func (c *Client) Announce() {
	if c.ch.ReadyAttr != "" {
		c.doc.SetAttr(c.doc.DocumentElement(), c.ch.ReadyAttr, "true")
	}
}

// Call sends method with params and returns the response. It never
// blocks beyond the synchronous exchange and never fails: transport
// problems come back as synthesized error responses.
func (c *Client) Call(ctx context.Context, method string, params any) Response {
	id := c.newID()
	call := Call{RequestID: id, Method: method}
	if params == nil {
		params = struct{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Response{RequestID: id, Error: fmt.Sprintf("bridge: encode params: %v", err), Synthesized: true}
	}
	call.Params = raw

	req, err := json.Marshal(call)
	if err != nil {
		return Response{RequestID: id, Error: fmt.Sprintf("bridge: encode call: %v", err), Synthesized: true}
	}

	out, ok := Exchange(ctx, c.doc, c.doc.DocumentElement(), c.ch, string(req))
	if !ok {
		c.logger.Debug("bridge: no response", "event", c.ch.Event, "method", method)
		return Response{RequestID: id, Error: ErrNoResponse, Synthesized: true}
	}
	var resp Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return Response{RequestID: id, Error: ErrInvalidResponse + err.Error(), Synthesized: true}
	}
	return resp
}
