// Package anchor maps an element to a stable (selector, xpath) pair and
// resolves a stored pair back to the element it designates.
//
// Generation prefers short, readable selectors (ids, meaningful classes) and
// only adds positional qualifiers when siblings make them necessary. Every
// generated selector is verified against the live document; when
// verification fails the generator falls back to a fully positional path,
// so Generate never fails.
package anchor

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
)

const (
	// maxDepth bounds how many ancestors the selector walks through.
	maxDepth = 10
	// maxClasses bounds how many meaningful classes a level contributes.
	maxClasses = 2
	// reservedIDPrefix marks ids this system generates for its own nodes.
	reservedIDPrefix = "dom-review"
)

// Anchor locates an element. Selector is tried first, XPath second.
type Anchor struct {
	Selector string `json:"selector"`
	XPath    string `json:"xpath"`
}

// Generate computes the anchor of el in doc.
func Generate(doc *dom.Document, el *html.Node) Anchor {
	var a Anchor
	doc.View(func(root *html.Node) {
		a = generate(root, el)
	})
	return a
}

// Resolve returns the element a designates in doc, or nil. Invalid selectors
// and stale paths resolve to nil.
func Resolve(doc *dom.Document, a Anchor) *html.Node {
	var el *html.Node
	doc.View(func(root *html.Node) {
		el = resolve(root, a)
	})
	return el
}

// ResolveSelector resolves a bare CSS selector, returning nil on any error.
func ResolveSelector(doc *dom.Document, selector string) *html.Node {
	return Resolve(doc, Anchor{Selector: selector})
}

func resolve(root *html.Node, a Anchor) *html.Node {
	if a.Selector != "" {
		if el, err := dom.Query(root, a.Selector); err == nil && el != nil {
			return el
		}
	}
	if a.XPath != "" {
		if found := EvaluateXPath(root, a.XPath); len(found) > 0 {
			return found[0]
		}
	}
	return nil
}

func generate(root, el *html.Node) Anchor {
	if !dom.IsElement(el) {
		return Anchor{}
	}
	return Anchor{Selector: selector(root, el), XPath: XPath(el)}
}

func selector(root, el *html.Node) string {
	body := dom.Body(root)
	if el == dom.DocumentElement(root) {
		return "html"
	}
	if el == body {
		return "body"
	}

	if id := stableID(el); id != "" {
		sel := "#" + EscapeIdent(id)
		if verify(root, sel, el) {
			return sel
		}
	}

	var parts []string
	cur := el
	for depth := 0; dom.IsElement(cur) && cur != body && depth < maxDepth; depth++ {
		if id := stableID(cur); id != "" {
			parts = append(parts, "#"+EscapeIdent(id))
			break
		}
		parts = append(parts, level(cur))
		cur = dom.ParentElement(cur)
	}
	sel := joinReversed(parts)
	if verify(root, sel, el) {
		return sel
	}
	return fallback(root, el)
}

// level renders one path step: tag, up to two meaningful classes and a
// positional qualifier when same-tag siblings exist.
func level(n *html.Node) string {
	var sb strings.Builder
	sb.WriteString(n.Data)
	kept := 0
	for _, c := range dom.Classes(n) {
		if kept == maxClasses {
			break
		}
		if IsUtilityClass(c) {
			continue
		}
		sb.WriteByte('.')
		sb.WriteString(EscapeIdent(c))
		kept++
	}
	if idx, total := dom.TypeIndex(n); total > 1 {
		fmt.Fprintf(&sb, ":nth-of-type(%d)", idx)
	}
	return sb.String()
}

// fallback builds a path with a positional qualifier at every level, rooted
// at body (or html for elements outside body).
func fallback(root, el *html.Node) string {
	body := dom.Body(root)
	htmlEl := dom.DocumentElement(root)
	var parts []string
	cur := el
	for dom.IsElement(cur) && cur != body && cur != htmlEl {
		idx, _ := dom.TypeIndex(cur)
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", cur.Data, idx))
		cur = dom.ParentElement(cur)
	}
	prefix := "body > "
	if cur != body {
		prefix = "html > "
	}
	return prefix + joinReversed(parts)
}

func stableID(n *html.Node) string {
	id := dom.Attr(n, "id")
	if id == "" || strings.HasPrefix(id, reservedIDPrefix) {
		return ""
	}
	return id
}

func verify(root *html.Node, sel string, el *html.Node) bool {
	if sel == "" {
		return false
	}
	found, err := dom.Query(root, sel)
	return err == nil && found == el
}

func joinReversed(parts []string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[len(parts)-1-i] = p
	}
	return strings.Join(out, " > ")
}
