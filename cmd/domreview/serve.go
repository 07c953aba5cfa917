package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	serveMCP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review API, the page and live updates over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the review tools to an MCP client on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, 127.0.0.1:8484)")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP over streamable HTTP at /mcp")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveMCP {
		cfg.Server.MCP = true
	}

	s, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			logger.Warn("domreview: close", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("domreview: listening", "addr", cfg.Server.Addr, "mcp", cfg.Server.MCP)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// The WebSocket subscribers are hijacked connections; Shutdown does not
	// wait for them, the hub closes them on session close.
	return srv.Shutdown(shutdownCtx)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}
