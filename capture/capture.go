// Package capture snapshots the element a review is attached to: tag,
// text excerpt, a subset of styles, accessibility attributes, an optional
// bounding box and the owning framework component.
package capture

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/framework"
	"github.com/hazyhaar/domreview/review"
)

const (
	maxText  = 100
	maxLabel = 50
)

// StyleKeys lists the style properties kept in a capture.
var StyleKeys = []string{
	"color", "backgroundColor", "fontSize", "fontWeight", "padding", "margin",
	"display", "position", "border", "borderRadius", "opacity",
}

// Geometry is what a Probe measures for an element.
type Geometry struct {
	Box    *review.BoundingBox
	Styles map[string]string
}

// Probe measures rendered geometry and styles. A parsed document has no
// layout, so the default probe only reads inline styles; a live browser
// probe fills in computed values.
type Probe interface {
	Probe(ctx context.Context, doc *dom.Document, el *html.Node) (Geometry, error)
}

// Detector finds the framework component owning an element.
type Detector interface {
	Detect(ctx context.Context, el *html.Node) *framework.Descriptor
}

// Capturer builds review contexts.
type Capturer struct {
	doc      *dom.Document
	probe    Probe
	detector Detector
	logger   *slog.Logger
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithProbe replaces the inline-style probe.
func WithProbe(p Probe) Option { return func(c *Capturer) { c.probe = p } }

// WithDetector enables framework detection, usually a *framework.Client.
func WithDetector(d Detector) Option { return func(c *Capturer) { c.detector = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Capturer) { c.logger = l } }

// New returns a Capturer for doc.
func New(doc *dom.Document, opts ...Option) *Capturer {
	c := &Capturer{doc: doc, probe: Inline{}, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fallback is the context recorded when an element cannot be captured.
func Fallback() *review.Context {
	return &review.Context{
		TagName:     "unknown",
		BoundingBox: &review.BoundingBox{},
		Styles:      map[string]string{},
		A11y:        review.A11y{Role: "unknown"},
	}
}

// Capture snapshots el. It never fails: a nil element or a probe error
// yields Fallback.
func (c *Capturer) Capture(ctx context.Context, el *html.Node) *review.Context {
	if el == nil || el.Type != html.ElementNode {
		return Fallback()
	}

	geo, err := c.probe.Probe(ctx, c.doc, el)
	if err != nil {
		c.logger.Warn("capture: probe failed", "tag", el.Data, "error", err)
		return Fallback()
	}

	var out review.Context
	c.doc.View(func(*html.Node) {
		tag := strings.ToLower(el.Data)
		text := strings.TrimSpace(dom.TextContent(el))
		label := firstNonEmpty(dom.Attr(el, "aria-label"), dom.Attr(el, "alt"), truncate(text, maxLabel))
		out = review.Context{
			TagName:     tag,
			Text:        truncate(text, maxText),
			BoundingBox: geo.Box,
			Styles:      subset(geo.Styles),
			A11y: review.A11y{
				Role:            firstNonEmpty(dom.Attr(el, "role"), tag),
				Label:           label,
				AriaDescribedby: dom.Attr(el, "aria-describedby"),
				AriaExpanded:    dom.Attr(el, "aria-expanded"),
				TabIndex:        dom.Attr(el, "tabindex"),
			},
		}
	})

	if c.detector != nil {
		out.Framework = c.detector.Detect(ctx, el)
	}
	return &out
}

func subset(styles map[string]string) map[string]string {
	out := make(map[string]string, len(StyleKeys))
	for _, k := range StyleKeys {
		if v, ok := styles[k]; ok {
			out[k] = v
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
