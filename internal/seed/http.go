package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nextup/internal/adapters/http/api"
	"github.com/okian/nextup/pkg/logger"
)

// Submission outcomes.
const (
	outcomeSuccess   = "success"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with an optional JSON body and headers.
func (c *HTTPClient) Post(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error) {
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}

// submitDrafts submits drafts concurrently using a worker pool.
func submitDrafts(ctx context.Context, config *Config, client *HTTPClient, subs []submission, stats *Stats) {
	logger.Get().Info(ctx, "submitting drafts", logger.Int("count", len(subs)), logger.Int("workers", config.Workers))

	url := config.BaseURL + "/events"
	var successful, duplicate, rejected, failed, submitted int64

	ch := make(chan submission, config.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range ch {
				if ctx.Err() != nil {
					return
				}
				result := submitOne(ctx, client, url, s)
				atomic.AddInt64(&submitted, 1)
				switch result {
				case outcomeSuccess:
					atomic.AddInt64(&successful, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if config.Verbose {
					logger.Get().Debug(ctx, "draft submitted", logger.String("key", s.Key), logger.String("result", result))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, s := range subs {
			select {
			case <-ctx.Done():
				return
			case ch <- s:
			}
		}
	}()
	wg.Wait()

	stats.EventsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.EventsSuccessful = int(atomic.LoadInt64(&successful))
	stats.EventsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.EventsRejected = int(atomic.LoadInt64(&rejected))
	stats.EventsFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "draft submission completed",
		logger.Int("successful", stats.EventsSuccessful),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("rejected", stats.EventsRejected),
		logger.Int("failed", stats.EventsFailed),
	)
}

func submitOne(ctx context.Context, client *HTTPClient, url string, s submission) string {
	resp, err := client.Post(ctx, url, s.Draft, map[string]string{api.IdempotencyHeader: s.Key})
	if err != nil {
		return outcomeFailed
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		return outcomeSuccess
	case http.StatusConflict:
		return outcomeDuplicate
	case http.StatusBadRequest:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

// fetchTotal reads totalEvents from GET /stats.
func fetchTotal(ctx context.Context, client *HTTPClient, baseURL string) (int, error) {
	resp, err := client.Get(ctx, baseURL+"/stats")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch stats: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stats returned status %d", resp.StatusCode)
	}
	var body struct {
		TotalEvents int `json:"totalEvents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode stats: %w", err)
	}
	return body.TotalEvents, nil
}

// requestRefresh asks the service to re-list its store.
func requestRefresh(ctx context.Context, client *HTTPClient, baseURL string) error {
	resp, err := client.Post(ctx, baseURL+"/events/refresh", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to request refresh: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("refresh returned status %d", resp.StatusCode)
	}
	return nil
}
