package live

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// Tab is one stealth browser tab navigated to a page.
type Tab struct {
	page   *rod.Page
	router *rod.HijackRouter
	url    string
}

// OpenTab creates a stealth tab, applies resource blocking and navigates
// to pageURL, waiting for the load event.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b, err := mgr.Browser(ctx)
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("live: create tab: %w", err)
	}
	t := &Tab{page: page, url: pageURL}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("live: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("live: wait load timeout", "url", pageURL, "error", err)
	}
	if info, err := page.Info(); err == nil && info.URL != "" {
		t.url = info.URL
	}
	return t, nil
}

// URL is the page URL after redirects.
func (t *Tab) URL() string { return t.url }

// Close closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		_ = t.router.Stop()
		t.router = nil
	}
	if t.page != nil {
		err := t.page.Close()
		t.page = nil
		return err
	}
	return nil
}
