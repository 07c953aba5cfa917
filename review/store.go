// Package review holds the authoritative table of reviews for one page.
//
// Every mutation is written synchronously to a durable Storage, scheduled
// for a debounced write into a JSON node embedded in the page, and
// announced to observers. The store is the single writer of its page's
// persisted state.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/domreview/anchor"
	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/idgen"
	"github.com/hazyhaar/domreview/storage"
)

const (
	// DataScriptID is the id of the page-embedded JSON node.
	DataScriptID = "dom-review-data"
	// MarkerAttr is set on every element that carries a review.
	MarkerAttr = "data-review-id"
	// DefaultNamespace prefixes durable keys.
	DefaultNamespace = "dom-review"
)

// ErrInvalidPayload is returned by FromJSON when the payload has no
// reviews list.
var ErrInvalidPayload = errors.New("review: invalid review data")

// Observer receives a snapshot of all reviews after every mutation.
type Observer func(reviews []Review)

type observer struct {
	id uint64
	fn Observer
}

// Store is the review table of one document.
type Store struct {
	doc       *dom.Document
	durable   storage.Storage
	key       string
	api       any
	logger    *slog.Logger
	now       func() time.Time
	newID     idgen.Generator
	debounce  *debouncer
	namespace string

	mu      sync.Mutex
	version string
	reviews []Review
	// rev and base are the durable revision and table this store last
	// read or wrote; base is the common ancestor when merging writes made
	// by another process.
	rev  int64
	base []Review

	omu       sync.Mutex
	observers []*observer
	nextObsID uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithNamespace sets the durable key prefix. Default: "dom-review".
func WithNamespace(ns string) Option { return func(s *Store) { s.namespace = ns } }

// WithDebounce sets the quiet window before the in-page write.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce.cfg.Window = d }
}

// WithAPIDescriptor sets the method catalogue embedded in the page node.
func WithAPIDescriptor(api any) Option { return func(s *Store) { s.api = api } }

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIDGenerator overrides how ids are assigned to reviews added without one.
func WithIDGenerator(gen idgen.Generator) Option { return func(s *Store) { s.newID = gen } }

// New creates an empty store for doc persisting to durable. Call
// LoadFromStorage to pick up prior state.
func New(doc *dom.Document, durable storage.Storage, opts ...Option) *Store {
	s := &Store{
		doc:       doc,
		durable:   durable,
		logger:    slog.Default(),
		now:       time.Now,
		namespace: DefaultNamespace,
		version:   Version,
	}
	s.debounce = newDebouncer(debounceConfig{}, s.FlushDOM)
	// Timer flushes start from no caller; they wait for the page.
	s.debounce.timerFn = func() {
		s.doc.Turn(context.Background(), func(context.Context) { s.FlushDOM() })
	}
	for _, o := range opts {
		o(s)
	}
	s.debounce.cfg.defaults()
	if s.newID == nil {
		s.newID = idgen.Prefixed("r_", idgen.MillisFrom(s.now))
	}
	loc := doc.Location()
	s.key = s.namespace + ":" + loc.Origin + loc.Path
	return s
}

// Key returns the durable key of this page.
func (s *Store) Key() string { return s.key }

// Document returns the page the store belongs to.
func (s *Store) Document() *dom.Document { return s.doc }

// Add appends r, assigning an id and creation time when absent, marks its
// element and returns the stored copy.
func (s *Store) Add(ctx context.Context, r Review) Review {
	s.mu.Lock()
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.Created.IsZero() {
		r.Created = s.now().UTC()
	}
	if r.Replies == nil {
		r.Replies = []Reply{}
	}
	r = r.Clone()
	s.reviews = append(s.reviews, r)
	s.applyMarker(r)
	snap, renamed := s.commitLocked(ctx)
	if id, ok := renamed[r.ID]; ok {
		r.ID = id
	}
	s.mu.Unlock()

	s.afterCommit(snap)
	return r.Clone()
}

// Get returns a copy of the review with the given id.
func (s *Store) Get(id string) (Review, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.reviews[i].Clone(), true
	}
	return Review{}, false
}

// GetAll returns a copy of every review in insertion order.
func (s *Store) GetAll() []Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.reviews)
}

// Len returns the number of reviews.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reviews)
}

// Update merges ch into the review and stamps its update time. Returns
// false if id is unknown.
func (s *Store) Update(ctx context.Context, id string, ch Changes) bool {
	return s.mutate(ctx, id, func(r *Review) {
		if ch.Comment != nil {
			r.Comment = *ch.Comment
		}
		if ch.Category != nil {
			r.Category = *ch.Category
		}
		if ch.Priority != nil {
			r.Priority = *ch.Priority
		}
		if ch.Resolved != nil {
			r.Resolved = *ch.Resolved
		}
	})
}

// AppendReply adds rp to the end of the review's thread. Returns false if
// id is unknown.
func (s *Store) AppendReply(ctx context.Context, id string, rp Reply) bool {
	if rp.Created.IsZero() {
		rp.Created = s.now().UTC()
	}
	return s.mutate(ctx, id, func(r *Review) {
		r.Replies = append(slices.Clone(r.Replies), rp)
	})
}

// Resolve marks the review resolved.
func (s *Store) Resolve(ctx context.Context, id string) bool {
	resolved := true
	return s.Update(ctx, id, Changes{Resolved: &resolved})
}

// Unresolve reopens the review.
func (s *Store) Unresolve(ctx context.Context, id string) bool {
	resolved := false
	return s.Update(ctx, id, Changes{Resolved: &resolved})
}

func (s *Store) mutate(ctx context.Context, id string, fn func(*Review)) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	r := s.reviews[i].Clone()
	fn(&r)
	now := s.now().UTC()
	r.Updated = &now
	s.reviews[i] = r
	snap, _ := s.commitLocked(ctx)
	s.mu.Unlock()

	s.afterCommit(snap)
	return true
}

// Remove deletes the review and its element marker. Unknown ids are a
// no-op.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.removeMarker(s.reviews[i])
	s.reviews = slices.Delete(s.reviews, i, i+1)
	snap, _ := s.commitLocked(ctx)
	s.mu.Unlock()

	s.afterCommit(snap)
}

// Clear removes every review and marker.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	for _, r := range s.reviews {
		s.removeMarker(r)
	}
	s.reviews = nil
	snap, _ := s.commitLocked(ctx)
	s.mu.Unlock()

	s.afterCommit(snap)
}

// ToJSON returns a deep copy of the store contents.
func (s *Store) ToJSON() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// FromJSON replaces the whole table with p. Markers of the outgoing
// reviews are removed before those of the incoming ones are applied.
func (s *Store) FromJSON(ctx context.Context, p Snapshot) error {
	if p.Reviews == nil {
		return ErrInvalidPayload
	}
	s.mu.Lock()
	for _, r := range s.reviews {
		s.removeMarker(r)
	}
	s.version = p.Version
	if s.version == "" {
		s.version = Version
	}
	s.reviews = cloneAll(p.Reviews)
	for _, r := range s.reviews {
		s.applyMarker(r)
	}
	snap, _ := s.commitLocked(ctx)
	s.mu.Unlock()

	s.afterCommit(snap)
	return nil
}

// LoadFromStorage replaces the table with the durable state of this page,
// if any, and writes the in-page node immediately. Read failures are
// logged and treated as no state.
func (s *Store) LoadFromStorage(ctx context.Context) {
	s.mu.Lock()
	stored, rev, err := s.loadLocked(ctx)
	if errors.Is(err, errNotSnapshot) {
		// The next write replaces the foreign value.
		s.rev = rev
	}
	if err != nil || rev == 0 {
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn("review: load from storage failed", "key", s.key, "error", err)
		}
		return
	}
	for _, r := range s.reviews {
		s.removeMarker(r)
	}
	s.version = stored.Version
	s.reviews = stored.Reviews
	s.rev = rev
	s.base = cloneAll(stored.Reviews)
	for _, r := range s.reviews {
		s.applyMarker(r)
	}
	s.mu.Unlock()

	s.debounce.stop()
	s.FlushDOM()
	s.logger.Info("review: loaded", "key", s.key, "reviews", len(stored.Reviews))
}

// Reload picks up durable state written by another process. It reports
// whether the table changed. The stored table is merged with local edits
// not yet persisted; on change the markers are swapped, the page node is
// rescheduled and observers are notified. Nothing is written back.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	s.mu.Lock()
	stored, rev, err := s.loadLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if rev == s.rev {
		s.mu.Unlock()
		return false, nil
	}
	before := cloneAll(s.reviews)
	s.mergeLocked(stored.Reviews)
	s.rev = rev
	s.base = cloneAll(stored.Reviews)
	if sameReviews(before, s.reviews) {
		s.mu.Unlock()
		return false, nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.afterCommit(snap)
	s.logger.Info("review: reloaded", "key", s.key, "reviews", len(snap.Reviews))
	return true, nil
}

// SaveToStorage writes the current state to the durable channel.
func (s *Store) SaveToStorage(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(ctx)
}

// SaveToDOM schedules a debounced write of the in-page node.
func (s *Store) SaveToDOM() {
	s.debounce.trigger()
}

// FlushDOM writes the in-page node now.
func (s *Store) FlushDOM() {
	s.mu.Lock()
	payload := pagePayload{Snapshot: s.snapshotLocked(), API: s.api}
	s.mu.Unlock()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		s.logger.Error("review: encode page data", "error", err)
		return
	}
	s.doc.UpsertJSONScript(DataScriptID, string(data))
}

// Close writes any pending in-page update and stops the timer.
func (s *Store) Close() {
	s.debounce.flush()
	s.debounce.stop()
}

// OnChange registers fn and returns a function that unregisters it.
func (s *Store) OnChange(fn Observer) (unsubscribe func()) {
	s.omu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, &observer{id: id, fn: fn})
	s.omu.Unlock()

	return func() {
		s.omu.Lock()
		defer s.omu.Unlock()
		s.observers = slices.DeleteFunc(s.observers, func(o *observer) bool { return o.id == id })
	}
}

type pagePayload struct {
	Snapshot
	API any `json:"api,omitempty"`
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version: s.version,
		Page:    s.doc.Location().Href,
		Reviews: cloneAll(s.reviews),
	}
}

// commitLocked persists the table durably and returns the snapshot to
// announce once the lock is released, with any ids changed by a merge.
func (s *Store) commitLocked(ctx context.Context) (Snapshot, map[string]string) {
	renamed := s.saveLocked(ctx)
	return s.snapshotLocked(), renamed
}

// maxSwapAttempts bounds how often a write is merged and retried when
// other processes keep writing the same key.
const maxSwapAttempts = 5

// errNotSnapshot marks a durable value that is not a review snapshot.
var errNotSnapshot = errors.New("review: stored state is not a review snapshot")

// saveLocked writes the table only if the durable revision is still the
// one this store last saw. Otherwise the other writer's table is merged in
// and the write retried. It returns local ids that had to change because
// the other writer minted them too.
func (s *Store) saveLocked(ctx context.Context) map[string]string {
	var renamed map[string]string
	for range maxSwapAttempts {
		data, err := json.Marshal(s.snapshotLocked())
		if err != nil {
			s.logger.Error("review: encode snapshot", "error", err)
			return renamed
		}
		rev, err := s.durable.Swap(ctx, s.key, data, s.rev)
		if err == nil {
			s.rev = rev
			s.base = cloneAll(s.reviews)
			return renamed
		}
		if !errors.Is(err, storage.ErrConflict) {
			s.logger.Warn("review: storage save failed", "key", s.key, "error", err)
			return renamed
		}

		stored, rev, err := s.loadLocked(ctx)
		switch {
		case errors.Is(err, errNotSnapshot):
			s.logger.Warn("review: overwriting foreign stored state", "key", s.key)
		case err != nil:
			s.logger.Warn("review: storage save failed", "key", s.key, "error", err)
			return renamed
		default:
			renamed = chainRenames(renamed, s.mergeLocked(stored.Reviews))
			s.base = cloneAll(stored.Reviews)
		}
		s.rev = rev
	}
	s.logger.Warn("review: storage save gave up after repeated conflicts", "key", s.key)
	return renamed
}

// loadLocked reads the durable table and its revision. A missing key is an
// empty table at revision 0.
func (s *Store) loadLocked(ctx context.Context) (Snapshot, int64, error) {
	raw, rev, err := s.durable.Load(ctx, s.key)
	if err != nil || rev == 0 {
		return Snapshot{Version: Version, Reviews: []Review{}}, rev, err
	}
	var p Snapshot
	if err := json.Unmarshal(raw, &p); err != nil || p.Reviews == nil {
		return Snapshot{}, rev, fmt.Errorf("%w: %v", errNotSnapshot, err)
	}
	if p.Version == "" {
		p.Version = Version
	}
	return p, rev, nil
}

func (s *Store) afterCommit(snap Snapshot) {
	s.SaveToDOM()
	s.notify(snap.Reviews)
}

func (s *Store) notify(reviews []Review) {
	s.omu.Lock()
	obs := slices.Clone(s.observers)
	s.omu.Unlock()

	for _, o := range obs {
		s.invoke(o, cloneAll(reviews))
	}
}

func (s *Store) invoke(o *observer, reviews []Review) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("review: observer failed", "error", fmt.Sprint(r))
		}
	}()
	o.fn(reviews)
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.reviews, func(r Review) bool { return r.ID == id })
}

func (s *Store) applyMarker(r Review) {
	if el := anchor.ResolveSelector(s.doc, r.Selector); el != nil {
		s.doc.SetAttr(el, MarkerAttr, r.ID)
	}
}

func (s *Store) removeMarker(r Review) {
	if el := anchor.ResolveSelector(s.doc, r.Selector); el != nil {
		s.doc.RemoveAttr(el, MarkerAttr)
	}
}
