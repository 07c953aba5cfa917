package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/domreview/capture"
	"github.com/hazyhaar/domreview/dom"
)

// Level selects how a page is loaded.
type Level int

const (
	// LevelAuto fetches over HTTP and escalates to the browser when the
	// HTML looks like an unrendered single-page app.
	LevelAuto Level = iota
	// LevelHTTP only fetches over HTTP.
	LevelHTTP
	// LevelHeadless always renders in the browser.
	LevelHeadless
)

var levelNames = map[Level]string{
	LevelAuto:     "auto",
	LevelHTTP:     "http",
	LevelHeadless: "headless",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses "auto", "http" or "headless". Empty means auto.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelAuto, nil
	}
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("live: unknown level %q", s)
}

// ErrNoBrowser is returned when a page needs the browser and the loader
// has none.
var ErrNoBrowser = errors.New("live: no browser configured")

// Page is a loaded document.
type Page struct {
	Doc   *dom.Document
	URL   string
	Level Level
	// Frameworks counts elements that received framework markers.
	Frameworks int

	tab *Tab
}

// Probe measures elements of the page. HTTP pages only have inline styles.
func (p *Page) Probe() capture.Probe {
	if p.tab == nil {
		return capture.Inline{}
	}
	return tabProbe{tab: p.tab}
}

// Close releases the browser tab, if any.
func (p *Page) Close() error {
	if p.tab == nil {
		return nil
	}
	return p.tab.Close()
}

// Loader loads pages into documents.
type Loader struct {
	fetcher *Fetcher
	mgr     *Manager
	logger  *slog.Logger
}

// NewLoader returns a loader. mgr may be nil when no browser is available.
func NewLoader(f *Fetcher, mgr *Manager, logger *slog.Logger) *Loader {
	if f == nil {
		f = NewFetcher(WithFetcherLogger(logger))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fetcher: f, mgr: mgr, logger: logger}
}

// Load fetches pageURL at the requested level.
func (l *Loader) Load(ctx context.Context, pageURL string, level Level, opts ...dom.Option) (*Page, error) {
	if level == LevelHeadless {
		return l.loadHeadless(ctx, pageURL, opts)
	}

	res, err := l.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if level == LevelAuto && !res.Sufficient {
		if l.mgr != nil {
			l.logger.Info("live: escalating to browser", "url", pageURL)
			return l.loadHeadless(ctx, pageURL, opts)
		}
		l.logger.Warn("live: page looks script-rendered but no browser is configured", "url", pageURL)
	}
	doc, err := dom.Parse(bytes.NewReader(res.HTML), res.FinalURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Page{Doc: doc, URL: res.FinalURL, Level: LevelHTTP}, nil
}

func (l *Loader) loadHeadless(ctx context.Context, pageURL string, opts []dom.Option) (*Page, error) {
	if l.mgr == nil {
		return nil, ErrNoBrowser
	}
	tab, err := OpenTab(ctx, l.mgr, pageURL)
	if err != nil {
		return nil, err
	}
	page, err := l.snapshot(ctx, tab, opts)
	if err != nil {
		tab.Close()
		return nil, err
	}
	return page, nil
}

func (l *Loader) snapshot(ctx context.Context, tab *Tab, opts []dom.Option) (*Page, error) {
	res, err := tab.page.Context(ctx).Eval(snapshotJS)
	if err != nil {
		return nil, fmt.Errorf("live: snapshot: %w", err)
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("live: decode snapshot: %w", err)
	}
	doc, err := dom.ParseString(snap.HTML, tab.URL(), opts...)
	if err != nil {
		return nil, err
	}
	n, err := attachMarkers(doc, snap.Markers)
	if err != nil {
		return nil, err
	}
	l.logger.Info("live: page rendered", "url", tab.URL(), "marked_nodes", n)
	return &Page{Doc: doc, URL: tab.URL(), Level: LevelHeadless, Frameworks: n, tab: tab}, nil
}
