package capture

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/framework"
	"github.com/hazyhaar/domreview/review"
)

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(src, "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestCapture_Button(t *testing.T) {
	doc := parse(t, `<html><body><button id="b" style="color: red; background-color:#fff; line-height: 2" aria-expanded="false" tabindex="0">  Save changes  </button></body></html>`)

	got := New(doc).Capture(context.Background(), doc.ElementByID("b"))
	want := &review.Context{
		TagName: "button",
		Text:    "Save changes",
		Styles:  map[string]string{"color": "red", "backgroundColor": "#fff"},
		A11y: review.A11y{
			Role:         "button",
			Label:        "Save changes",
			AriaExpanded: "false",
			TabIndex:     "0",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestCapture_LabelPrecedence(t *testing.T) {
	doc := parse(t, `<html><body>
		<img id="i" alt="logo" role="presentation">
		<a id="a" aria-label="home" alt="ignored">Home page</a>
		<p id="p">`+strings.Repeat("x", 120)+`</p>
	</body></html>`)
	c := New(doc)
	ctx := context.Background()

	if got := c.Capture(ctx, doc.ElementByID("i")).A11y; got.Label != "logo" || got.Role != "presentation" {
		t.Fatalf("img a11y: %+v", got)
	}
	if got := c.Capture(ctx, doc.ElementByID("a")).A11y.Label; got != "home" {
		t.Fatalf("label: got %q, want %q", got, "home")
	}
	p := c.Capture(ctx, doc.ElementByID("p"))
	if len(p.Text) != maxText || len(p.A11y.Label) != maxLabel {
		t.Fatalf("text %d / label %d, want %d / %d", len(p.Text), len(p.A11y.Label), maxText, maxLabel)
	}
}

func TestCapture_Fallback(t *testing.T) {
	doc := parse(t, `<html><body><p id="p">x</p></body></html>`)
	if diff := cmp.Diff(Fallback(), New(doc).Capture(context.Background(), nil)); diff != "" {
		t.Fatalf("nil element (-want +got):\n%s", diff)
	}

	failing := probeFunc(func(context.Context, *dom.Document, *html.Node) (Geometry, error) {
		return Geometry{}, errors.New("detached")
	})
	got := New(doc, WithProbe(failing)).Capture(context.Background(), doc.ElementByID("p"))
	if got.TagName != "unknown" {
		t.Fatalf("probe error should yield the fallback, got %+v", got)
	}
}

func TestCapture_ProbeAndDetector(t *testing.T) {
	doc := parse(t, `<html><body><p id="p">x</p></body></html>`)
	box := &review.BoundingBox{X: 1, Y: 2, W: 30, H: 40}
	probe := probeFunc(func(context.Context, *dom.Document, *html.Node) (Geometry, error) {
		return Geometry{Box: box, Styles: map[string]string{"display": "block", "zIndex": "3"}}, nil
	})
	desc := &framework.Descriptor{Framework: "react", ComponentName: "P"}
	det := detectorFunc(func(context.Context, *html.Node) *framework.Descriptor { return desc })

	got := New(doc, WithProbe(probe), WithDetector(det)).Capture(context.Background(), doc.ElementByID("p"))
	if diff := cmp.Diff(box, got.BoundingBox); diff != "" {
		t.Fatalf("box (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"display": "block"}, got.Styles); diff != "" {
		t.Fatalf("styles (-want +got):\n%s", diff)
	}
	if got.Framework != desc {
		t.Fatalf("framework: got %+v", got.Framework)
	}
}

func TestParseStyle(t *testing.T) {
	got, err := ParseStyle("font-size: 12px; color: red !important; color: blue; border-radius: 4px")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"fontSize": "12px", "color": "red", "borderRadius": "4px"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"color":            "color",
		"background-color": "backgroundColor",
		"Border-Top-Width": "borderTopWidth",
		"-webkit-box":      "webkitBox",
	}
	for in, want := range tests {
		if got := CamelCase(in); got != want {
			t.Errorf("CamelCase(%q): got %q, want %q", in, got, want)
		}
	}
}

type probeFunc func(context.Context, *dom.Document, *html.Node) (Geometry, error)

func (f probeFunc) Probe(ctx context.Context, d *dom.Document, el *html.Node) (Geometry, error) {
	return f(ctx, d, el)
}

type detectorFunc func(context.Context, *html.Node) *framework.Descriptor

func (f detectorFunc) Detect(ctx context.Context, el *html.Node) *framework.Descriptor {
	return f(ctx, el)
}
