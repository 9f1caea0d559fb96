// Package seed fills a running service with random events through its HTTP
// API and checks that the synchronized snapshot picks them up.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/nextup/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run generates, submits and verifies a batch of events.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting nextup seed run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("events", config.NumEvents),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
	)

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config.BaseURL); err != nil {
		return stats, err
	}

	before, err := fetchTotal(ctx, client, config.BaseURL)
	if err != nil {
		return stats, err
	}
	stats.TotalBefore = before

	subs, err := generateDrafts(ctx, config.NumEvents, time.Now(), stats)
	if err != nil {
		return stats, fmt.Errorf("draft generation failed: %w", err)
	}

	submitDrafts(ctx, config, client, subs, stats)

	if err := requestRefresh(ctx, client, config.BaseURL); err != nil {
		logger.Get().Warn(ctx, "manual refresh was not accepted", logger.Error(err))
	}

	if err := waitForTotal(ctx, client, config, before+stats.EventsSuccessful, stats); err != nil {
		return stats, err
	}

	if config.OutputFile != "" {
		if err := saveDrafts(ctx, config.OutputFile, subs); err != nil {
			logger.Get().Warn(ctx, "failed to save drafts to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Get(ctx, baseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The service answers with Prometheus metrics
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// waitForTotal polls /stats until totalEvents reaches want.
func waitForTotal(ctx context.Context, client *HTTPClient, config *Config, want int, stats *Stats) error {
	deadline := time.Now().Add(config.SettleWithin)
	for {
		total, err := fetchTotal(ctx, client, config.BaseURL)
		if err == nil {
			stats.TotalAfter = total
			if total >= want {
				logger.Get().Info(ctx, "snapshot caught up", logger.Int("total", total), logger.Int("expected", want))
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: total %d, expected %d", ErrNotSettled, stats.TotalAfter, want)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.PollEvery):
		}
	}
}

// saveDrafts writes the generated drafts to a JSON file.
func saveDrafts(ctx context.Context, filename string, subs []submission) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal drafts: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write drafts: %w", err)
	}
	logger.Get().Info(ctx, "drafts saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.EventsGenerated),
		logger.Int("submitted", stats.EventsSubmitted),
		logger.Int("successful", stats.EventsSuccessful),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("rejected", stats.EventsRejected),
		logger.Int("failed", stats.EventsFailed),
		logger.Int("totalBefore", stats.TotalBefore),
		logger.Int("totalAfter", stats.TotalAfter),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submissionsPerSecond", perSecond),
	)
}
