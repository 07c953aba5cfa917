package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
)

// Inline reads the element's style attribute. It reports no bounding box.
type Inline struct{}

// Probe implements Probe.
func (Inline) Probe(_ context.Context, doc *dom.Document, el *html.Node) (Geometry, error) {
	style, _ := doc.Attr(el, "style")
	styles, err := ParseStyle(style)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Styles: styles}, nil
}

// ParseStyle parses a declaration list such as "font-size: 12px; color: red"
// into camel-cased properties. Later declarations win unless an earlier one
// is !important.
func ParseStyle(style string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(style) == "" {
		return out, nil
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return nil, fmt.Errorf("capture: parse style: %w", err)
	}
	important := map[string]bool{}
	for _, d := range decls {
		key := CamelCase(d.Property)
		if important[key] && !d.Important {
			continue
		}
		out[key] = strings.TrimSpace(strings.TrimSuffix(d.Value, "!important"))
		important[key] = important[key] || d.Important
	}
	return out, nil
}

// CamelCase converts a CSS property name to its CSSOM form
// ("background-color" becomes "backgroundColor").
func CamelCase(prop string) string {
	prop = strings.ToLower(strings.TrimSpace(prop))
	var sb strings.Builder
	upper := false
	for _, r := range prop {
		if r == '-' {
			upper = sb.Len() > 0
			continue
		}
		if upper {
			sb.WriteString(strings.ToUpper(string(r)))
			upper = false
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
