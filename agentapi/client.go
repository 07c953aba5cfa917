package agentapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/domreview/bridge"
	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/review"
)

// ErrUnavailable wraps failures synthesized on the calling side because no
// handler answered.
var ErrUnavailable = errors.New("agentapi: handler unavailable")

// Client calls a Handler through the document.
type Client struct {
	bc *bridge.Client
}

// NewClient returns a client on the agent channel of doc and marks the
// channel ready.
func NewClient(doc *dom.Document, opts ...bridge.ClientOption) *Client {
	bc := bridge.NewClient(doc, bridge.Agent, opts...)
	bc.Announce()
	return &Client{bc: bc}
}

// Call issues a raw call and returns the response envelope unchanged.
func (c *Client) Call(ctx context.Context, method string, params any) bridge.Response {
	return c.bc.Call(ctx, method, params)
}

// Reviews returns the page snapshot.
func (c *Client) Reviews(ctx context.Context) (review.Snapshot, error) {
	var snap review.Snapshot
	err := c.do(ctx, GetReviews, nil, &snap)
	return snap, err
}

// Review returns one review.
func (c *Client) Review(ctx context.Context, id string) (review.Review, error) {
	var r review.Review
	err := c.do(ctx, GetReview, Params{ReviewID: id}, &r)
	return r, err
}

// AddComment creates a review and returns its id.
func (c *Client) AddComment(ctx context.Context, p Params) (string, error) {
	var out Added
	err := c.do(ctx, AddComment, p, &out)
	return out.ID, err
}

// AddReply appends a reply and returns its id.
func (c *Client) AddReply(ctx context.Context, p Params) (string, error) {
	var out Replied
	err := c.do(ctx, AddReply, p, &out)
	return out.ReplyID, err
}

// Resolve marks a review resolved.
func (c *Client) Resolve(ctx context.Context, id string) error {
	return c.do(ctx, ResolveReview, Params{ReviewID: id}, nil)
}

// Unresolve reopens a review.
func (c *Client) Unresolve(ctx context.Context, id string) error {
	return c.do(ctx, UnresolveReview, Params{ReviewID: id}, nil)
}

// Update changes a review's comment, priority or category.
func (c *Client) Update(ctx context.Context, p Params) error {
	return c.do(ctx, UpdateComment, p, nil)
}

// Delete removes a review. Unknown ids succeed.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, DeleteReview, Params{ReviewID: id}, nil)
}

func (c *Client) do(ctx context.Context, method string, params, out any) error {
	resp := c.bc.Call(ctx, method, params)
	if resp.Synthesized {
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Error)
	}
	if !resp.Success {
		return Error(resp.Error)
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}
