// Package notify delivers review-store changes to outside consumers.
package notify

import (
	"context"
	"time"

	"github.com/hazyhaar/domreview/review"
)

// Change is the state of a page's reviews after a mutation.
type Change struct {
	Page     string          `json:"page"`
	Open     int             `json:"open"`
	Resolved int             `json:"resolved"`
	Reviews  []review.Review `json:"reviews"`
	At       time.Time       `json:"at"`
}

// NewChange summarizes reviews of page.
func NewChange(page string, reviews []review.Review, at time.Time) Change {
	open, resolved := review.Counts(reviews)
	if reviews == nil {
		reviews = []review.Review{}
	}
	return Change{Page: page, Open: open, Resolved: resolved, Reviews: reviews, At: at.UTC()}
}

// Sink is an output backend (stdout, webhook, websocket, in-process
// callback).
type Sink interface {
	Send(ctx context.Context, c Change) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
