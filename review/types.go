package review

import (
	"maps"
	"slices"
	"time"

	"github.com/hazyhaar/domreview/framework"
)

// Version is written into every persisted snapshot.
const Version = "1.0"

// Category classifies what kind of change a review asks for.
type Category string

const (
	CategoryStyle  Category = "style"
	CategoryLogic  Category = "logic"
	CategoryA11y   Category = "a11y"
	CategoryText   Category = "text"
	CategoryLayout Category = "layout"
	CategoryRemove Category = "remove"
	CategoryAdd    Category = "add"
)

// Categories lists the valid categories.
var Categories = []Category{
	CategoryStyle, CategoryLogic, CategoryA11y, CategoryText,
	CategoryLayout, CategoryRemove, CategoryAdd,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return slices.Contains(Categories, c) }

// Priority ranks reviews.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists the valid priorities, highest first.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return slices.Contains(Priorities, p) }

// rank orders priorities for sorting; unknown values sort last.
func (p Priority) rank() int {
	if i := slices.Index(Priorities, p); i >= 0 {
		return i
	}
	return len(Priorities) - 1
}

// BoundingBox is the element's rendered rectangle, in CSS pixels.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// A11y holds the accessibility attributes captured with a review.
type A11y struct {
	Role            string `json:"role"`
	Label           string `json:"label"`
	AriaDescribedby string `json:"ariaDescribedby,omitempty"`
	AriaExpanded    string `json:"ariaExpanded,omitempty"`
	TabIndex        string `json:"tabIndex,omitempty"`
}

// Context is a snapshot of the reviewed element taken when the review was
// created.
type Context struct {
	TagName     string                `json:"tagName"`
	Text        string                `json:"text"`
	BoundingBox *BoundingBox          `json:"boundingBox,omitempty"`
	Styles      map[string]string     `json:"styles"`
	A11y        A11y                  `json:"a11y"`
	Framework   *framework.Descriptor `json:"framework"`
}

// Clone returns a deep copy of c.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	if c.BoundingBox != nil {
		bb := *c.BoundingBox
		out.BoundingBox = &bb
	}
	out.Styles = maps.Clone(c.Styles)
	out.Framework = c.Framework.Clone()
	return &out
}

// Reply is an entry in a review's thread.
type Reply struct {
	ID      string    `json:"id"`
	Comment string    `json:"comment"`
	Author  string    `json:"author"`
	Created time.Time `json:"created"`
}

// Review is a comment anchored to a page element.
type Review struct {
	ID       string     `json:"id"`
	Selector string     `json:"selector"`
	XPath    string     `json:"xpath"`
	Comment  string     `json:"comment"`
	Category Category   `json:"category"`
	Priority Priority   `json:"priority"`
	Resolved bool       `json:"resolved"`
	Created  time.Time  `json:"created"`
	Updated  *time.Time `json:"updated"`
	Context  *Context   `json:"context"`
	Replies  []Reply    `json:"replies"`
}

// Clone returns a deep copy of r.
func (r Review) Clone() Review {
	out := r
	if r.Updated != nil {
		t := *r.Updated
		out.Updated = &t
	}
	out.Context = r.Context.Clone()
	if r.Replies != nil {
		out.Replies = slices.Clone(r.Replies)
	}
	return out
}

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	Comment  *string
	Category *Category
	Priority *Priority
	Resolved *bool
}

// Snapshot is the persisted form of a store.
type Snapshot struct {
	Version string   `json:"version"`
	Page    string   `json:"page,omitempty"`
	Reviews []Review `json:"reviews"`
}

func cloneAll(rs []Review) []Review {
	out := make([]Review, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
