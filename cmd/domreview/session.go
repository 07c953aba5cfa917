package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hazyhaar/domreview"
	"github.com/hazyhaar/domreview/config"
	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/live"
)

// loadConfig reads --config, then lets flags override it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	if pageURL != "" {
		cfg.Page.URL = pageURL
	}
	if pageFile != "" {
		cfg.Page.File = pageFile
	}
	if pageLevel != "" {
		cfg.Page.Level = pageLevel
	}
	switch dbPath {
	case "":
	case "memory":
		cfg.Storage.Driver = "memory"
	default:
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Page.URL == "" && cfg.Page.File == "" {
		return nil, fmt.Errorf("a page is required: set --url or --file")
	}
	return cfg, nil
}

// opened is a session with the page it runs on.
type opened struct {
	*domreview.Session
	page *live.Page
	mgr  *live.Manager
}

func (o *opened) Close(ctx context.Context) error {
	err := o.Session.Close(ctx)
	if o.page != nil {
		o.page.Close()
	}
	if o.mgr != nil {
		o.mgr.Close()
	}
	return err
}

// open loads the configured page and starts a session on it.
func open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*opened, error) {
	if cfg.Page.File != "" {
		doc, err := readFile(cfg.Page.File, cfg.Page.URL, logger)
		if err != nil {
			return nil, err
		}
		s, err := domreview.New(ctx, cfg, doc, logger)
		if err != nil {
			return nil, err
		}
		return &opened{Session: s}, nil
	}

	level, err := live.ParseLevel(cfg.Page.Level)
	if err != nil {
		return nil, err
	}
	var mgr *live.Manager
	if level != live.LevelHTTP {
		mgr = live.NewManager(live.Config{
			RemoteURL:        cfg.Browser.Remote,
			Headful:          cfg.Browser.Headful,
			Bin:              cfg.Browser.Bin,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			NavTimeout:       cfg.Browser.NavTimeout,
			Logger:           logger,
		})
	}
	loader := live.NewLoader(live.NewFetcher(live.WithFetcherLogger(logger)), mgr, logger)
	page, err := loader.Load(ctx, cfg.Page.URL, level, dom.WithLogger(logger))
	if err != nil {
		if mgr != nil {
			mgr.Close()
		}
		return nil, err
	}
	s, err := domreview.New(ctx, cfg, page.Doc, logger, domreview.WithProbe(page.Probe()))
	if err != nil {
		page.Close()
		if mgr != nil {
			mgr.Close()
		}
		return nil, err
	}
	return &opened{Session: s, page: page, mgr: mgr}, nil
}

func readFile(path, location string, logger *slog.Logger) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if location == "" {
		// Pages read from disk are keyed as if served from localhost.
		location = "http://localhost/" + url.PathEscape(filepath.Base(path))
	}
	return dom.Parse(f, location, dom.WithLogger(logger))
}
