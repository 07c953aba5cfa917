package anchor

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
)

func parse(t *testing.T, body string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString("<!DOCTYPE html><html><head></head><body>"+body+"</body></html>", "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func query(t *testing.T, d *dom.Document, sel string) *html.Node {
	t.Helper()
	el, err := d.QuerySelector(sel)
	if err != nil || el == nil {
		t.Fatalf("query %q: %v %v", sel, el, err)
	}
	return el
}

func TestGenerate_SiblingListItems(t *testing.T) {
	d := parse(t, `<ul id="x"><li>a</li><li>b</li></ul>`)
	first := query(t, d, "#x li")
	second := first.NextSibling

	a1 := Generate(d, first)
	a2 := Generate(d, second)
	if a1.Selector == a2.Selector {
		t.Fatalf("selectors must differ: %q", a1.Selector)
	}
	if a2.Selector != "#x > li:nth-of-type(2)" {
		t.Fatalf("second li: got %q", a2.Selector)
	}
	if a2.XPath != "/html[1]/body[1]/ul[1]/li[2]" {
		t.Fatalf("xpath: got %q", a2.XPath)
	}
}

func TestGenerate_Cases(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		target string
		want   string
	}{
		{"unique id", `<div><p id="intro">x</p></div>`, "p", "#intro"},
		{"reserved id ignored", `<div class="card"><p id="dom-review-1">x</p></div>`, "p", "div.card > p"},
		{"utility classes skipped", `<section><div class="mt-4 card flex hero extra">x</div></section>`, "div", "section > div.card.hero"},
		{"stops at ancestor id", `<main id="app"><div><span>x</span></div></main>`, "span", "#app > div > span"},
		{"digit id escaped", `<p id="1st">x</p>`, "p", `#\31 st`},
		{"body", ``, "body", "body"},
		{"html", ``, "html", "html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parse(t, tt.body)
			el := query(t, d, tt.target)
			got := Generate(d, el)
			if got.Selector != tt.want {
				t.Fatalf("selector: got %q, want %q", got.Selector, tt.want)
			}
			if Resolve(d, got) != el {
				t.Fatalf("round trip failed for %q", got.Selector)
			}
		})
	}
}

func TestGenerate_DuplicateIDFallsBack(t *testing.T) {
	d := parse(t, `<div id="dup">a</div><div id="dup">b</div>`)
	all, _ := d.QuerySelectorAll("div")
	el := all[1]

	got := Generate(d, el)
	if got.Selector != "body > div:nth-of-type(2)" {
		t.Fatalf("selector: got %q", got.Selector)
	}
	if Resolve(d, got) != el {
		t.Fatal("fallback must resolve to the element")
	}
}

func nested(depth int, inner string) string {
	return strings.Repeat("<div>", depth) + inner + strings.Repeat("</div>", depth)
}

func TestGenerate_DeepPathIsBounded(t *testing.T) {
	d := parse(t, "<section>"+nested(12, "<em>x</em>")+"</section>")
	el := query(t, d, "em")

	got := Generate(d, el)
	if n := strings.Count(got.Selector, " > ") + 1; n != maxDepth {
		t.Fatalf("selector %q has %d levels, want %d", got.Selector, n, maxDepth)
	}
	if strings.HasPrefix(got.Selector, "body") || strings.Contains(got.Selector, "section") {
		t.Fatalf("selector %q walked past the depth bound", got.Selector)
	}
	if Resolve(d, got) != el {
		t.Fatalf("selector %q does not resolve to its element", got.Selector)
	}
}

func TestGenerate_DeepAmbiguousPathFallsBack(t *testing.T) {
	d := parse(t, nested(12, "<em>a</em>")+nested(12, "<em>b</em>"))
	all, err := d.QuerySelectorAll("em")
	if err != nil || len(all) != 2 {
		t.Fatalf("ems: %d %v", len(all), err)
	}

	first := Generate(d, all[0])
	if strings.HasPrefix(first.Selector, "body > ") {
		t.Fatalf("first chain should not need the fallback: %q", first.Selector)
	}
	second := Generate(d, all[1])
	if !strings.HasPrefix(second.Selector, "body > div:nth-of-type(2) > ") {
		t.Fatalf("second chain: got %q, want a positional path from body", second.Selector)
	}
	for i, a := range []Anchor{first, second} {
		if Resolve(d, a) != all[i] {
			t.Fatalf("selector %q does not resolve to em %d", a.Selector, i)
		}
	}
}

func TestGenerate_RoundTripEveryElement(t *testing.T) {
	d := parse(t, `
<header class="flex p-4"><nav><a href="#">1</a><a href="#">2</a><a href="#">3</a></nav></header>
<main><article class="post"><h2>t</h2><p>a</p><p>b</p></article>
<article class="post"><h2>u</h2><p>c</p><div><p>d</p></div></article></main>
<footer><ul><li>x</li><li class="text-sm">y</li></ul></footer>`)

	all, err := d.QuerySelectorAll("body *")
	if err != nil {
		t.Fatal(err)
	}
	for _, el := range all {
		a := Generate(d, el)
		if got := ResolveSelector(d, a.Selector); got != el {
			t.Errorf("selector %q does not resolve to its element", a.Selector)
		}
		if got := Resolve(d, Anchor{XPath: a.XPath}); got != el {
			t.Errorf("xpath %q does not resolve to its element", a.XPath)
		}
	}
}

func TestResolve_FallsBackToXPath(t *testing.T) {
	d := parse(t, `<ul><li>a</li><li>b</li></ul>`)
	got := Resolve(d, Anchor{Selector: "li[[", XPath: "/html[1]/body[1]/ul[1]/li[2]"})
	if got == nil || dom.TextContent(got) != "b" {
		t.Fatalf("xpath fallback: got %v", got)
	}
	if Resolve(d, Anchor{Selector: ".missing", XPath: "/html[1]/body[1]/ol[1]"}) != nil {
		t.Fatal("stale anchor should resolve to nil")
	}
}

func TestEvaluateXPath(t *testing.T) {
	d := parse(t, `<div class="a"><p>1</p></div><div class="b"><p>2</p><p>3</p></div>`)
	root := d.Root()

	tests := []struct {
		xpath string
		want  int
	}{
		{"//p", 3},
		{"//div[@class='b']/p", 2},
		{"//div[2]", 1},
		{"/html/body/div", 2},
		{"/html[1]/body[1]/div[2]/p[2]", 1},
		{"", 0},
	}
	for _, tt := range tests {
		if got := len(EvaluateXPath(root, tt.xpath)); got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.xpath, got, tt.want)
		}
	}
}

func TestEscapeIdent(t *testing.T) {
	tests := map[string]string{
		"plain":  "plain",
		"a b":    `a\ b`,
		"1abc":   `\31 abc`,
		"-1":     `-\31 `,
		"-":      `\-`,
		"a:b":    `a\:b`,
		"é":      "é",
		"x\x01y": `x\1 y`,
	}
	for in, want := range tests {
		if got := EscapeIdent(in); got != want {
			t.Errorf("EscapeIdent(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestIsUtilityClass(t *testing.T) {
	for _, c := range []string{"mt-4", "flex", "text-sm", "hover:bg-red", "p-2", "hidden"} {
		if !IsUtilityClass(c) {
			t.Errorf("%q should be a utility class", c)
		}
	}
	for _, c := range []string{"card", "post-title", "nav", "primary"} {
		if IsUtilityClass(c) {
			t.Errorf("%q should not be a utility class", c)
		}
	}
}
