package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/nextup/internal/seed"
)

// Default configuration constants.
const (
	defaultNumEvents = 50
	defaultWorkers   = 4
	defaultTimeout   = 10 * time.Second
	defaultSettle    = 30 * time.Second
	defaultPoll      = 250 * time.Millisecond
	defaultRunLimit  = 5 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEvents  = flag.Int("events", defaultNumEvents, "Number of events to generate and submit")
		workers    = flag.Int("workers", defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "How long to wait for the snapshot to catch up")
		outputFile = flag.String("output", "", "Save generated drafts to this JSON file")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp(os.Stdout)
		return
	}

	if err := seed.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	config := &seed.Config{
		BaseURL:      *baseURL,
		NumEvents:    *numEvents,
		Workers:      max(*workers, 1),
		Timeout:      *timeout,
		SettleWithin: *settle,
		PollEvery:    defaultPoll,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}

	if _, err := seed.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
