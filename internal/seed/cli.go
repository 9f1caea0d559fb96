package seed

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/nextup/pkg/logger"
)

// SetupLogging initializes the logger for the seed tool.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	_, _ = io.WriteString(w, `NextUp Seed Tool
================

Submits random events to a running NextUp service and waits until its
snapshot reports them.

Usage:
  go run ./cmd/seed [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -events int        Number of events to generate and submit (default 50)
  -workers int       Number of concurrent submitters (default 4)
  -timeout duration  HTTP request timeout (default 10s)
  -settle duration   How long to wait for the snapshot to catch up (default 30s)
  -output string     Save generated drafts to this JSON file
  -verbose           Enable debug logging
  -help              Show this help message
`)
}
