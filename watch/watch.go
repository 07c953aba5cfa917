// Package watch polls a revision token and runs an action when it moves.
// The session uses it to pick up review state written to a shared SQLite
// file by another process.
//
//	w := watch.New(watch.Query(db, `SELECT updated_at FROM kv WHERE key = ?`, key), watch.Options{})
//	go w.Run(ctx, func(ctx context.Context) error { return reload(ctx) })
package watch

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Detector reads a revision token. Two calls returning different values
// mean something changed.
type Detector func(ctx context.Context) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action
	// fires. Further changes during the window restart it. 0 fires on the
	// poll that saw the change.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a Detector and runs an action on change.
type Watcher struct {
	detect Detector
	opts   Options

	revision atomic.Int64

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	reloads atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
	Reloads         int64 `json:"reloads"`
}

// New creates a Watcher. Call Run to start polling.
func New(detect Detector, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{detect: detect, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
}

// Revision returns the last revision the action completed for.
func (w *Watcher) Revision() int64 { return w.revision.Load() }

// Run blocks until ctx is cancelled. The first poll seeds the revision
// without firing. A failing action leaves the revision where it was, so
// the next poll retries it.
func (w *Watcher) Run(ctx context.Context, action func(ctx context.Context) error) {
	log := w.opts.Logger
	if v, err := w.detect(ctx); err != nil {
		log.Warn("watch: initial check failed", "error", err)
	} else {
		w.revision.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var settle *time.Timer
	var settleC <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()
	pending, hasPending := int64(0), false

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.errors.Add(1)
				log.Warn("watch: check failed", "error", err)
				continue
			}
			if cur == w.revision.Load() || (hasPending && cur == pending) {
				continue
			}
			w.changes.Add(1)
			pending, hasPending = cur, true
			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, cur)
				hasPending = false
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(w.opts.Debounce)
			settleC = settle.C

		case <-settleC:
			settleC = nil
			if hasPending {
				w.fire(ctx, action, pending)
				hasPending = false
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context) error, rev int64) {
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("watch: action failed", "revision", rev, "error", err)
		return
	}
	w.reloads.Add(1)
	w.revision.Store(rev)
	w.opts.Logger.Debug("watch: reloaded", "revision", rev)
}

// Query returns a Detector reading a single integer column. A query
// that matches no row reads as revision 0.
func Query(db *sql.DB, query string, args ...any) Detector {
	return func(ctx context.Context) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query, args...).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return v, err
	}
}
