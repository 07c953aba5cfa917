package framework

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/bridge"
	"github.com/hazyhaar/domreview/dom"
)

// Responder answers introspection requests on the page side, where the
// framework markers are visible.
type Responder struct {
	doc       *dom.Document
	detectors []Detector
	logger    *slog.Logger
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithDetectors replaces the detector chain.
func WithDetectors(ds ...Detector) ResponderOption {
	return func(r *Responder) { r.detectors = ds }
}

// WithResponderLogger sets the logger.
func WithResponderLogger(l *slog.Logger) ResponderOption {
	return func(r *Responder) { r.logger = l }
}

// NewResponder returns a responder using the default detectors.
func NewResponder(doc *dom.Document, opts ...ResponderOption) *Responder {
	r := &Responder{doc: doc, detectors: DefaultDetectors(), logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Serve installs the element and page listeners and returns a function that
// removes them.
func (r *Responder) Serve() (stop func()) {
	stopElement := r.doc.AddEventListener(bridge.Element.Event, r.onElement)
	stopPage := r.doc.AddEventListener(bridge.Page.Event, r.onPage)
	return func() {
		stopElement()
		stopPage()
	}
}

func (r *Responder) onElement(*dom.Event) {
	target, err := r.doc.QuerySelector("[" + bridge.Element.RequestAttr + "]")
	if err != nil || target == nil {
		return
	}
	desc := Detect(r.doc, target, r.detectors)
	data, err := json.Marshal(desc)
	if err != nil {
		r.logger.Warn("framework: encode descriptor", "error", err)
		return
	}
	r.doc.SetAttr(target, bridge.Element.ResponseAttr, string(data))
}

func (r *Responder) onPage(*dom.Event) {
	data, err := json.Marshal(DetectPage(r.doc))
	if err != nil {
		return
	}
	r.doc.SetAttr(r.doc.DocumentElement(), bridge.Page.ResponseAttr, string(data))
}

// Client queries a Responder through the introspection channels.
type Client struct {
	doc *dom.Document

	mu         sync.Mutex
	frameworks []string
	cached     bool
}

// NewClient returns an introspection client for doc.
func NewClient(doc *dom.Document) *Client {
	return &Client{doc: doc}
}

// PageFrameworks returns the frameworks the page reports. The first answer
// is cached for the life of the client.
func (c *Client) PageFrameworks(ctx context.Context) []string {
	c.mu.Lock()
	if c.cached {
		defer c.mu.Unlock()
		return c.frameworks
	}
	c.mu.Unlock()

	// Exchange takes a document turn; mu must not be held across it.
	var list []string
	if raw, ok := bridge.Exchange(ctx, c.doc, c.doc.DocumentElement(), bridge.Page, ""); ok {
		_ = json.Unmarshal([]byte(raw), &list)
	}
	if list == nil {
		list = []string{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cached {
		c.frameworks, c.cached = list, true
	}
	return c.frameworks
}

// Detect returns the component descriptor of el, or nil when the page runs
// no known framework, no responder is attached or nothing matched.
func (c *Client) Detect(ctx context.Context, el *html.Node) *Descriptor {
	if el == nil || len(c.PageFrameworks(ctx)) == 0 {
		return nil
	}
	raw, ok := bridge.Exchange(ctx, c.doc, el, bridge.Element, "")
	if !ok || raw == "null" {
		return nil
	}
	var desc Descriptor
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return nil
	}
	return &desc
}
