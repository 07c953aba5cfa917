package dom

import (
	"slices"

	"golang.org/x/net/html"
)

// propBag holds the expando properties of one node, keyed in insertion
// order so that prefix scans (React fiber keys) are deterministic.
type propBag struct {
	keys []string
	vals map[string]any
}

// SetProperty attaches an arbitrary value to n under key.
func (d *Document) SetProperty(n *html.Node, key string, val any) {
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	bag := d.props[n]
	if bag == nil {
		bag = &propBag{vals: make(map[string]any)}
		d.props[n] = bag
	}
	if _, ok := bag.vals[key]; !ok {
		bag.keys = append(bag.keys, key)
	}
	bag.vals[key] = val
}

// Property returns the value attached to n under key.
func (d *Document) Property(n *html.Node, key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	bag := d.props[n]
	if bag == nil {
		return nil, false
	}
	v, ok := bag.vals[key]
	return v, ok
}

// DeleteProperty removes key from n.
func (d *Document) DeleteProperty(n *html.Node, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bag := d.props[n]
	if bag == nil {
		return
	}
	if _, ok := bag.vals[key]; !ok {
		return
	}
	delete(bag.vals, key)
	bag.keys = slices.DeleteFunc(bag.keys, func(k string) bool { return k == key })
}

// PropertyKeys lists the keys attached to n in insertion order.
func (d *Document) PropertyKeys(n *html.Node) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	bag := d.props[n]
	if bag == nil {
		return nil
	}
	return slices.Clone(bag.keys)
}
