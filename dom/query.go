package dom

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrInvalidSelector is returned when a CSS selector does not parse.
var ErrInvalidSelector = errors.New("dom: invalid selector")

// Compile parses a CSS selector group.
func Compile(sel string) (cascadia.Selector, error) {
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSelector, sel, err)
	}
	return s, nil
}

// Query returns the first element under root matching sel, in document
// order. It takes no lock.
func Query(root *html.Node, sel string) (*html.Node, error) {
	s, err := Compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchFirst(root), nil
}

// QueryAll returns every element under root matching sel. It takes no lock.
func QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	s, err := Compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchAll(root), nil
}

// QuerySelector returns the first element matching sel, or nil.
func (d *Document) QuerySelector(sel string) (*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Query(d.root, sel)
}

// QuerySelectorAll returns every element matching sel.
func (d *Document) QuerySelectorAll(sel string) ([]*html.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return QueryAll(d.root, sel)
}

// ElementByID returns the first element with the given id, or nil.
func (d *Document) ElementByID(id string) *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return ElementByID(d.root, id)
}
