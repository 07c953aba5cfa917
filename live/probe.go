package live

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/anchor"
	"github.com/hazyhaar/domreview/capture"
	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/review"
)

const probeJS = `(sel, keys) => {
	const el = document.querySelector(sel);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	const cs = window.getComputedStyle(el);
	const styles = {};
	for (const k of keys) styles[k] = String(cs[k] || '');
	return {
		box: {x: Math.round(r.x), y: Math.round(r.y), w: Math.round(r.width), h: Math.round(r.height)},
		styles,
	};
}`

// tabProbe measures elements in the browser tab the document was loaded
// from. Elements the page no longer has fall back to inline styles.
type tabProbe struct {
	tab *Tab
}

// Probe implements capture.Probe.
func (p tabProbe) Probe(ctx context.Context, doc *dom.Document, el *html.Node) (capture.Geometry, error) {
	sel := anchor.Generate(doc, el).Selector
	res, err := p.tab.page.Context(ctx).Eval(probeJS, sel, capture.StyleKeys)
	if err != nil {
		return capture.Geometry{}, fmt.Errorf("live: probe %s: %w", sel, err)
	}
	if res.Value.Nil() {
		return capture.Inline{}.Probe(ctx, doc, el)
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		return capture.Geometry{}, err
	}
	var out struct {
		Box    review.BoundingBox `json:"box"`
		Styles map[string]string  `json:"styles"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return capture.Geometry{}, fmt.Errorf("live: decode probe: %w", err)
	}
	return capture.Geometry{Box: &out.Box, Styles: out.Styles}, nil
}
