package live

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Empty mount points and noscript warnings left by client-rendered apps.
var spaIndicators = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	"<noscript>you need to enable javascript",
	"<noscript>enable javascript",
}

// IsSufficient reports whether body has enough visible text relative to
// markup to be reviewed as served. A client-rendered shell is not.
func IsSufficient(body []byte) bool {
	if len(body) < 256 {
		return false
	}
	text, markup := textMarkupRatio(body)
	total := text + markup
	if total == 0 {
		return false
	}
	if float64(text)/float64(total) < 0.10 || text < 200 {
		return false
	}
	lower := bytes.ToLower(body)
	for _, ind := range spaIndicators {
		if bytes.Contains(lower, []byte(ind)) {
			return false
		}
	}
	return true
}

// textMarkupRatio counts non-whitespace text bytes against everything
// else. Script and style contents count as markup.
func textMarkupRatio(body []byte) (text, markup int) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var skip atom.Atom
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return text, markup
		case html.TextToken:
			raw := z.Raw()
			if skip != 0 {
				markup += len(raw)
				continue
			}
			text += len(strings.Join(strings.Fields(string(raw)), ""))
		case html.StartTagToken:
			markup += len(z.Raw())
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				skip = a
			}
		case html.EndTagToken:
			markup += len(z.Raw())
			name, _ := z.TagName()
			if atom.Lookup(name) == skip {
				skip = 0
			}
		default:
			markup += len(z.Raw())
		}
	}
}
