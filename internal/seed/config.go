package seed

import (
	"time"

	"github.com/okian/nextup/internal/domain/types"
)

// Config holds configuration for a seed run.
type Config struct {
	BaseURL      string        // Base URL of the service
	NumEvents    int           // Number of drafts to generate
	Workers      int           // Number of concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	SettleWithin time.Duration // How long to wait for the snapshot to catch up
	PollEvery    time.Duration // Poll interval while waiting
	OutputFile   string        // Output file for the generated drafts; empty skips saving
	Verbose      bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsRejected   int
	EventsFailed     int
	TotalBefore      int
	TotalAfter       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// submission pairs a draft with the idempotency key it is sent under.
type submission struct {
	Key   string                   `json:"key"`
	Draft types.CreateEventRequest `json:"draft"`
}
