// Package dom is the shared page model: a parsed HTML document that two
// independent sets of components can both hold, with attribute access,
// expando properties, synchronous events and turns.
//
// All methods on Document are safe for concurrent use. Code that needs to
// walk the raw tree does so inside View or Update and must use the
// package-level helpers (Attr, Children, Query, ...) which take no lock.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Location describes where the document was loaded from.
type Location struct {
	Href   string `json:"href"`
	Origin string `json:"origin"`
	Path   string `json:"path"`
	Host   string `json:"host"`
}

// Document wraps a parsed HTML tree.
type Document struct {
	mu    sync.RWMutex
	root  *html.Node
	loc   Location
	props map[*html.Node]*propBag

	lmu       sync.Mutex
	listeners map[string][]*listener
	nextLID   uint64

	turn sync.Mutex

	logger *slog.Logger
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used for listener failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// Parse reads an HTML document. pageURL is the address the document is
// considered to live at; it keys persistence and must be absolute.
func Parse(r io.Reader, pageURL string, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	loc, err := ParseLocation(pageURL)
	if err != nil {
		return nil, err
	}
	d := &Document{
		root:      root,
		loc:       loc,
		props:     make(map[*html.Node]*propBag),
		listeners: make(map[string][]*listener),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s, pageURL string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL, opts...)
}

// ParseLocation splits an absolute URL into the fields of a Location.
func ParseLocation(pageURL string) (Location, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Location{}, fmt.Errorf("dom: page url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Location{}, fmt.Errorf("dom: page url %q is not absolute", pageURL)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return Location{
		Href:   u.String(),
		Origin: u.Scheme + "://" + u.Host,
		Path:   path,
		Host:   u.Hostname(),
	}, nil
}

// Location returns the page location.
func (d *Document) Location() Location { return d.loc }

// Root returns the document node. Only walk it inside View or Update.
func (d *Document) Root() *html.Node { return d.root }

// View runs fn with the tree read-locked.
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// Update runs fn with the tree write-locked. fn may restructure the tree;
// expandos on detached nodes are dropped.
func (d *Document) Update(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
	for n := range d.props {
		if !Contains(d.root, n) {
			delete(d.props, n)
		}
	}
}

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DocumentElement(d.root)
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Body(d.root)
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("dom: render: %w", err)
	}
	return buf.String(), nil
}

// OuterHTML renders a single element.
func (d *Document) OuterHTML(n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return OuterHTML(n)
}

// Contains reports whether n is still attached to the document.
func (d *Document) Contains(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Contains(d.root, n)
}

// Attr returns the value of an attribute of n.
func (d *Document) Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return LookupAttr(n, key)
}

// SetAttr sets or replaces an attribute of n.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute of n if present.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}
