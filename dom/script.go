package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// UpsertJSONScript writes text into <script type="application/json" id=id>,
// creating the node at the end of <body> when it does not exist yet.
func (d *Document) UpsertJSONScript(id, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el := ElementByID(d.root, id)
	if el == nil || el.DataAtom != atom.Script {
		parent := Body(d.root)
		if parent == nil {
			parent = DocumentElement(d.root)
		}
		if parent == nil {
			return
		}
		el = &html.Node{
			Type:     html.ElementNode,
			Data:     "script",
			DataAtom: atom.Script,
			Attr: []html.Attribute{
				{Key: "type", Val: "application/json"},
				{Key: "id", Val: id},
			},
		}
		parent.AppendChild(el)
	}
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		c = next
	}
	el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// JSONScript returns the text of the script node with the given id.
func (d *Document) JSONScript(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el := ElementByID(d.root, id)
	if el == nil || el.DataAtom != atom.Script {
		return "", false
	}
	return TextContent(el), true
}
