// Command domreview runs a review session on a web page.
//
// Usage:
//
//	domreview serve --url https://example.com/cart       # HTTP + WebSocket surface
//	domreview mcp --url https://example.com/cart         # MCP tools on stdio
//	domreview call addComment '{"selector":"#buy","comment":"Bigger"}' --url ...
//	domreview export --url ... -o reviews.json
//	domreview import reviews.json --url ...
//	domreview report --url ...
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	pageURL    string
	pageFile   string
	pageLevel  string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "domreview",
	Short:         "Review a web page element by element, for people and agents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to domreview.yaml")
	pf.StringVar(&pageURL, "url", "", "page under review")
	pf.StringVar(&pageFile, "file", "", "read the page from a local HTML file instead of fetching --url")
	pf.StringVar(&pageLevel, "level", "", "page loading: http, headless or auto")
	pf.StringVar(&dbPath, "db", "", "SQLite database path (\"memory\" keeps reviews in memory)")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, mcpCmd, callCmd, exportCmd, importCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "domreview:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
