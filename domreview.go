// Package domreview assembles a review session for one page: the review
// store and its durable backend, the agent handler on the page side, the
// framework introspection responder, change sinks and the HTTP and MCP
// surfaces that reach the handler through the agent bridge.
package domreview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/domreview/agentapi"
	"github.com/hazyhaar/domreview/bridge"
	"github.com/hazyhaar/domreview/capture"
	"github.com/hazyhaar/domreview/config"
	"github.com/hazyhaar/domreview/dbopen"
	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/exchange"
	"github.com/hazyhaar/domreview/framework"
	"github.com/hazyhaar/domreview/notify"
	"github.com/hazyhaar/domreview/review"
	"github.com/hazyhaar/domreview/storage"
	"github.com/hazyhaar/domreview/watch"
)

// Session is one page under review.
type Session struct {
	cfg     *config.Config
	doc     *dom.Document
	durable storage.Storage
	store   *review.Store
	handler *agentapi.Handler
	client  *agentapi.Client
	fw      *framework.Client
	hub     *notify.Hub
	sinks   *notify.Router
	fwd     *notify.Forwarder
	report  *exchange.Reporter
	logger  *slog.Logger
	now     func() time.Time
	stops   []func()

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	durable storage.Storage
	probe   capture.Probe
	sinks   []notify.Sink
	now     func() time.Time
}

// Option configures a Session.
type Option func(*options)

// WithStorage replaces the backend named in the configuration.
func WithStorage(s storage.Storage) Option { return func(o *options) { o.durable = s } }

// WithProbe sets how element geometry is measured, usually the probe of a
// live page.
func WithProbe(p capture.Probe) Option { return func(o *options) { o.probe = p } }

// WithSink adds a change sink next to the configured ones.
func WithSink(s notify.Sink) Option { return func(o *options) { o.sinks = append(o.sinks, s) } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New wires a session on doc and loads the page's durable state.
func New(ctx context.Context, cfg *config.Config, doc *dom.Document, logger *slog.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}

	durable := o.durable
	if durable == nil {
		var err error
		if durable, err = openStorage(cfg.Storage); err != nil {
			return nil, err
		}
	}

	s := &Session{
		cfg:     cfg,
		doc:     doc,
		durable: durable,
		report:  exchange.NewReporter(),
		logger:  logger,
		now:     o.now,
	}
	s.store = review.New(doc, durable,
		review.WithDebounce(cfg.Debounce),
		review.WithNamespace(cfg.Storage.Namespace),
		review.WithAPIDescriptor(agentapi.Descriptor()),
		review.WithClock(o.now),
		review.WithLogger(logger),
	)

	s.stops = append(s.stops, framework.NewResponder(doc, framework.WithResponderLogger(logger)).Serve())
	s.fw = framework.NewClient(doc)

	capOpts := []capture.Option{capture.WithDetector(s.fw), capture.WithLogger(logger)}
	if o.probe != nil {
		capOpts = append(capOpts, capture.WithProbe(o.probe))
	}
	s.handler = agentapi.NewHandler(s.store,
		agentapi.WithCapturer(capture.New(doc, capOpts...)),
		agentapi.WithLogger(logger),
		agentapi.WithClock(o.now),
	)
	s.stops = append(s.stops, s.handler.Serve())
	s.client = agentapi.NewClient(doc, bridge.WithClientLogger(logger))

	s.hub = notify.NewHub(logger)
	s.sinks = notify.NewRouter(logger, s.hub)
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			s.sinks.Add(notify.NewStdout(os.Stdout))
		case "webhook":
			s.sinks.Add(notify.NewWebhook(sc.URL,
				notify.WithWebhookRetries(sc.Retries),
				notify.WithWebhookLogger(logger)))
		}
	}
	for _, sink := range o.sinks {
		s.sinks.Add(sink)
	}
	s.fwd = notify.Forward(s.store, s.sinks, logger)

	s.store.LoadFromStorage(ctx)
	if s.store.Len() > 0 {
		if err := s.sinks.Send(ctx, s.change()); err != nil {
			logger.Warn("domreview: initial notify failed", "error", err)
		}
	}
	if sq, ok := durable.(*storage.SQLite); ok && cfg.Storage.Watch > 0 {
		s.stops = append(s.stops, s.watchStorage(sq, cfg.Storage.Watch))
	}
	logger.Info("domreview: session ready",
		"page", doc.Location().Href, "key", s.store.Key(), "reviews", s.store.Len())
	return s, nil
}

func openStorage(sc config.StorageConfig) (storage.Storage, error) {
	switch sc.Driver {
	case "", "sqlite":
		var opts []dbopen.Option
		if sc.BusyTimeout > 0 {
			opts = append(opts, dbopen.WithBusyTimeout(int(sc.BusyTimeout.Milliseconds())))
		}
		if sc.Synchronous != "" {
			opts = append(opts, dbopen.WithSynchronous(strings.ToUpper(sc.Synchronous)))
		}
		st, err := storage.OpenSQLite(sc.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("domreview: open storage: %w", err)
		}
		return st, nil
	case "memory":
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("domreview: unknown storage driver %q", sc.Driver)
}

// watchStorage polls the page's row for writes by other processes and
// reloads the table when one lands. Reloaded tables reach the sinks
// through the store observers.
func (s *Session) watchStorage(sq *storage.SQLite, every time.Duration) (stop func()) {
	w := watch.New(watch.Query(sq.DB, storage.RevisionQuery, s.store.Key()),
		watch.Options{Interval: every, Logger: s.logger})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(ctx context.Context) error {
			_, err := s.store.Reload(ctx)
			return err
		})
	}()
	return func() {
		cancel()
		<-done
	}
}

// Document returns the page.
func (s *Session) Document() *dom.Document { return s.doc }

// Store returns the review table.
func (s *Session) Store() *review.Store { return s.store }

// Client returns the agent bridge client.
func (s *Session) Client() *agentapi.Client { return s.client }

// Handler returns the page-side agent handler.
func (s *Session) Handler() *agentapi.Handler { return s.handler }

// Hub returns the WebSocket broadcast sink.
func (s *Session) Hub() *notify.Hub { return s.hub }

// Export returns the reviews as an indented export document.
func (s *Session) Export() ([]byte, error) { return exchange.Export(s.store) }

// ExportFilename is the suggested file name of an export made now.
func (s *Session) ExportFilename() string {
	return exchange.Filename(s.doc.Location().Host, s.now())
}

// Import replaces the reviews with an export document.
func (s *Session) Import(ctx context.Context, data []byte) (int, error) {
	return exchange.Import(ctx, s.store, data)
}

// Report renders the reviews as Markdown.
func (s *Session) Report() string {
	return s.report.Render(s.doc, s.store.ToJSON())
}

func (s *Session) change() notify.Change {
	return notify.NewChange(s.doc.Location().Href, s.store.GetAll(), s.now())
}

// Close writes pending page state, drains the sinks and closes storage.
// Later calls return the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { s.closeErr = s.close(ctx) })
	return s.closeErr
}

func (s *Session) close(ctx context.Context) error {
	for i := len(s.stops) - 1; i >= 0; i-- {
		s.stops[i]()
	}
	s.store.Close()

	var errs []error
	if err := s.fwd.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("domreview: drain sinks: %w", err))
	}
	if err := s.sinks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("domreview: close sinks: %w", err))
	}
	if err := s.durable.Close(); err != nil {
		errs = append(errs, fmt.Errorf("domreview: close storage: %w", err))
	}
	return errors.Join(errs...)
}
