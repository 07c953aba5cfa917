package agentapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/domreview/anchor"
	"github.com/hazyhaar/domreview/bridge"
	"github.com/hazyhaar/domreview/capture"
	"github.com/hazyhaar/domreview/idgen"
	"github.com/hazyhaar/domreview/kit"
	"github.com/hazyhaar/domreview/review"
)

// Error is a failure reported to the caller verbatim.
type Error string

func (e Error) Error() string { return string(e) }

func notFound(id string) error { return Error(fmt.Sprintf("Review %s not found", id)) }

// IsNotFound reports whether err says the review does not exist.
func IsNotFound(err error) bool {
	var e Error
	return errors.As(err, &e) && strings.HasPrefix(string(e), "Review ") && strings.HasSuffix(string(e), " not found")
}

const (
	errReviewIDRequired   = Error("reviewId is required")
	errSelectorAndComment = Error("selector and comment are required")
	errReviewIDAndComment = Error("reviewId and comment are required")
)

// Handler executes agent calls against a store.
type Handler struct {
	store    *review.Store
	capturer *capture.Capturer
	replyIDs idgen.Generator
	now      func() time.Time
	logger   *slog.Logger
	mws      []kit.Middleware

	methods map[string]kit.Endpoint
}

// Option configures a Handler.
type Option func(*Handler)

// WithCapturer sets how element context is captured on addComment. The
// default reads the store's document with inline styles only.
func WithCapturer(c *capture.Capturer) Option { return func(h *Handler) { h.capturer = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.logger = l } }

// WithClock overrides the time source of reply timestamps and ids.
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// WithMiddleware wraps every method endpoint.
func WithMiddleware(mws ...kit.Middleware) Option {
	return func(h *Handler) { h.mws = append(h.mws, mws...) }
}

// NewHandler returns a handler operating on store.
func NewHandler(store *review.Store, opts ...Option) *Handler {
	h := &Handler{store: store, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	if h.capturer == nil {
		h.capturer = capture.New(store.Document(), capture.WithLogger(h.logger))
	}
	h.replyIDs = idgen.Prefixed("rp_", idgen.MillisFrom(h.now))

	mw := kit.Chain(append([]kit.Middleware{kit.Logging(h.logger)}, h.mws...)...)
	h.methods = map[string]kit.Endpoint{
		GetReviews:      mw(h.getReviews),
		GetReview:       mw(h.getReview),
		AddComment:      mw(h.addComment),
		AddReply:        mw(h.addReply),
		ResolveReview:   mw(h.resolveReview),
		UnresolveReview: mw(h.unresolveReview),
		UpdateComment:   mw(h.updateComment),
		DeleteReview:    mw(h.deleteReview),
	}
	return h
}

// Serve installs h on the agent channel of its store's document.
func (h *Handler) Serve() (stop func()) {
	return bridge.Serve(h.store.Document(), bridge.Agent, h, h.logger)
}

// ServeBridge implements bridge.Handler.
func (h *Handler) ServeBridge(ctx context.Context, call bridge.Call) (resp bridge.Response) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("agentapi: method panicked", "method", call.Method, "error", fmt.Sprint(r))
			resp = bridge.Fail(call.RequestID, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	ep, ok := h.methods[call.Method]
	if !ok {
		return bridge.Fail(call.RequestID, "Unknown method: "+call.Method)
	}
	var p Params
	if len(call.Params) > 0 {
		// Non-object params read as no params; required fields are then
		// reported missing.
		_ = json.Unmarshal(call.Params, &p)
	}

	ctx = kit.WithRequestID(kit.WithMethod(kit.WithTransport(ctx, "bridge"), call.Method), call.RequestID)
	data, err := ep(ctx, p)
	if err != nil {
		return bridge.Fail(call.RequestID, err.Error())
	}
	return bridge.OK(call.RequestID, data)
}

// AddUserReply appends a reply written by the person reviewing the page.
func (h *Handler) AddUserReply(ctx context.Context, reviewID, comment string) (Replied, error) {
	data, err := h.addReply(ctx, Params{ReviewID: reviewID, Comment: &comment, Author: AuthorUser})
	if err != nil {
		return Replied{}, err
	}
	return data.(Replied), nil
}

func (h *Handler) getReviews(context.Context, any) (any, error) {
	return h.store.ToJSON(), nil
}

func (h *Handler) getReview(_ context.Context, req any) (any, error) {
	p := req.(Params)
	if p.ReviewID == "" {
		return nil, errReviewIDRequired
	}
	r, ok := h.store.Get(p.ReviewID)
	if !ok {
		return nil, notFound(p.ReviewID)
	}
	return r, nil
}

func (h *Handler) addComment(ctx context.Context, req any) (any, error) {
	p := req.(Params)
	if p.Selector == "" || p.comment() == "" {
		return nil, errSelectorAndComment
	}
	priority := review.Priority(p.Priority)
	if !priority.Valid() {
		priority = review.PriorityMedium
	}
	category := review.Category(p.Category)
	if !category.Valid() {
		category = review.CategoryStyle
	}

	r := review.Review{
		Selector: p.Selector,
		Comment:  p.comment(),
		Priority: priority,
		Category: category,
	}
	doc := h.store.Document()
	if el := anchor.ResolveSelector(doc, p.Selector); el != nil {
		r.Context = h.capturer.Capture(ctx, el)
		r.XPath = anchor.Generate(doc, el).XPath
	}
	added := h.store.Add(ctx, r)
	return Added{ID: added.ID}, nil
}

func (h *Handler) addReply(ctx context.Context, req any) (any, error) {
	p := req.(Params)
	if p.ReviewID == "" || p.comment() == "" {
		return nil, errReviewIDAndComment
	}
	author := p.Author
	if author == "" {
		author = AuthorAgent
	}
	rp := review.Reply{
		ID:      h.replyIDs(),
		Comment: p.comment(),
		Author:  author,
		Created: h.now().UTC(),
	}
	if !h.store.AppendReply(ctx, p.ReviewID, rp) {
		return nil, notFound(p.ReviewID)
	}
	return Replied{ReviewID: p.ReviewID, ReplyID: rp.ID}, nil
}

func (h *Handler) resolveReview(ctx context.Context, req any) (any, error) {
	return h.setResolved(ctx, req.(Params), h.store.Resolve)
}

func (h *Handler) unresolveReview(ctx context.Context, req any) (any, error) {
	return h.setResolved(ctx, req.(Params), h.store.Unresolve)
}

func (h *Handler) setResolved(ctx context.Context, p Params, fn func(context.Context, string) bool) (any, error) {
	if p.ReviewID == "" {
		return nil, errReviewIDRequired
	}
	if !fn(ctx, p.ReviewID) {
		return nil, notFound(p.ReviewID)
	}
	return nil, nil
}

func (h *Handler) updateComment(ctx context.Context, req any) (any, error) {
	p := req.(Params)
	if p.ReviewID == "" {
		return nil, errReviewIDRequired
	}
	var ch review.Changes
	if p.Comment != nil {
		ch.Comment = p.Comment
	}
	if pr := review.Priority(p.Priority); pr.Valid() {
		ch.Priority = &pr
	}
	if c := review.Category(p.Category); c.Valid() {
		ch.Category = &c
	}
	if !h.store.Update(ctx, p.ReviewID, ch) {
		return nil, notFound(p.ReviewID)
	}
	return nil, nil
}

func (h *Handler) deleteReview(ctx context.Context, req any) (any, error) {
	p := req.(Params)
	if p.ReviewID == "" {
		return nil, errReviewIDRequired
	}
	h.store.Remove(ctx, p.ReviewID)
	return nil, nil
}
