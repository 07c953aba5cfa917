package anchor

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domreview/dom"
)

// XPath returns the absolute path of el with a 1-based same-tag index at
// every level, e.g. /html[1]/body[1]/ul[1]/li[2].
func XPath(el *html.Node) string {
	var parts []string
	for cur := el; dom.IsElement(cur); cur = cur.Parent {
		idx, _ := dom.TypeIndex(cur)
		parts = append(parts, fmt.Sprintf("%s[%d]", cur.Data, idx))
	}
	if len(parts) == 0 {
		return ""
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// EvaluateXPath evaluates a practical subset of XPath against root:
//   - /html[1]/body[1]/div  absolute path
//   - //article             descendant anywhere
//   - //div[@class='x']     attribute predicate
//   - //div[2]              positional predicate
//
// It takes no lock.
func EvaluateXPath(root *html.Node, xpath string) []*html.Node {
	xpath = strings.TrimSpace(xpath)
	switch {
	case xpath == "":
		return nil
	case strings.HasPrefix(xpath, "//"):
		return findDescendants(root, xpath[2:])
	case strings.HasPrefix(xpath, "/"):
		return followPath(root, xpath[1:])
	default:
		return findDescendants(root, xpath)
	}
}

func findDescendants(root *html.Node, expr string) []*html.Node {
	steps := strings.SplitN(expr, "/", 2)
	tag, pred := parseStep(steps[0])

	var matches []*html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if matchesStep(n, tag, pred) {
			matches = append(matches, n)
		}
		return true
	})

	if len(steps) > 1 && steps[1] != "" {
		var filtered []*html.Node
		for _, m := range matches {
			filtered = append(filtered, followPath(m, steps[1])...)
		}
		return filtered
	}
	return matches
}

func followPath(from *html.Node, path string) []*html.Node {
	current := []*html.Node{from}
	for _, step := range strings.Split(path, "/") {
		if step == "" {
			continue
		}
		tag, pred := parseStep(step)
		var next []*html.Node
		for _, parent := range current {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				if matchesStep(c, tag, pred) {
					next = append(next, c)
				}
			}
		}
		current = next
	}
	return current
}

type predicate struct {
	attrName  string
	attrValue string
	position  int
}

func parseStep(step string) (string, *predicate) {
	idx := strings.IndexByte(step, '[')
	if idx < 0 {
		return strings.ToLower(step), nil
	}
	tag := strings.ToLower(step[:idx])
	body := strings.TrimSuffix(step[idx+1:], "]")

	if n, err := strconv.Atoi(body); err == nil {
		return tag, &predicate{position: n}
	}
	if strings.HasPrefix(body, "@") {
		expr := body[1:]
		if eq := strings.IndexByte(expr, '='); eq >= 0 {
			return tag, &predicate{attrName: expr[:eq], attrValue: strings.Trim(expr[eq+1:], `'"`)}
		}
		return tag, &predicate{attrName: expr}
	}
	return tag, nil
}

func matchesStep(n *html.Node, tag string, pred *predicate) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if tag != "*" && n.Data != tag {
		return false
	}
	switch {
	case pred == nil:
		return true
	case pred.attrName != "":
		v, ok := dom.LookupAttr(n, pred.attrName)
		if pred.attrValue != "" {
			return v == pred.attrValue
		}
		return ok
	case pred.position > 0:
		idx, _ := dom.TypeIndex(n)
		return idx == pred.position
	}
	return true
}
