package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportOut string
	reportOut string
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Issue one agent call and print the response envelope",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCall,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the page's reviews as an export document",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the page's reviews with an export document",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the page's reviews as Markdown",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default: dom-review-<host>-<date>.json, \"-\" for stdout)")
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "-", "output file, \"-\" for stdout")
}

// withSession opens the configured page, runs fn and closes the session.
func withSession(cmd *cobra.Command, fn func(s *opened) error) error {
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
	runErr := fn(s)
	if err := s.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func runCall(cmd *cobra.Command, args []string) error {
	var params json.RawMessage
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("params are not valid JSON")
		}
		params = json.RawMessage(args[1])
	}
	return withSession(cmd, func(s *opened) error {
		var p any
		if params != nil {
			p = params
		}
		resp := s.Client().Call(cmd.Context(), args[0], p)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("%s failed: %s", args[0], resp.Error)
		}
		return nil
	})
}

func runExport(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(s *opened) error {
		data, err := s.Export()
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = s.ExportFilename()
		}
		return write(cmd, out, append(data, '\n'))
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *opened) error {
		n, err := s.Import(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d reviews\n", n)
		return nil
	})
}

func runReport(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(s *opened) error {
		return write(cmd, reportOut, []byte(s.Report()))
	})
}

func write(cmd *cobra.Command, path string, data []byte) error {
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}
