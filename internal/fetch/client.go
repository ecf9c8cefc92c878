// Package fetch implements the upstream platform API adapter.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/geopop/harvester/internal/harvest"
)

// Config controls the HTTP client behavior.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	// Retry bounds for transient failures (network errors, 429, 5xx).
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffLimit time.Duration
}

// Client is an HTTP JSON adapter implementing harvest.Fetcher. Every
// error it returns is treated as transient by the crawl loop: the unit
// stays in the missing set and is retried on a future random draw.
type Client struct {
	cfg    Config
	http   *http.Client
	retry  *retryPolicy
	logger *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fetch.base_url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		retry:  newRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffLimit),
		logger: logger,
	}, nil
}

// FetchPosts returns the raw posts authored by handle inside the window.
func (c *Client) FetchPosts(ctx context.Context, handle string, window harvest.DayWindow) ([]harvest.RawPost, error) {
	endpoint := fmt.Sprintf("%s/users/%s/posts?since=%s&until=%s",
		c.cfg.BaseURL,
		url.PathEscape(handle),
		window.Start().Format("2006-01-02"),
		window.End().Format("2006-01-02"),
	)
	var posts []harvest.RawPost
	if err := c.getJSON(ctx, "posts", endpoint, &posts); err != nil {
		return nil, fmt.Errorf("fetch posts for %s: %w", handle, err)
	}
	return posts, nil
}

// neighborsResponse mirrors the upstream payload: followers and followees
// arrive as separate lists.
type neighborsResponse struct {
	Followers []harvest.Candidate `json:"followers"`
	Following []harvest.Candidate `json:"following"`
}

// FetchNeighbors returns the merged follower/followee records of handle,
// deduplicated by platform ID.
func (c *Client) FetchNeighbors(ctx context.Context, handle string) ([]harvest.Candidate, error) {
	endpoint := fmt.Sprintf("%s/users/%s/neighbors", c.cfg.BaseURL, url.PathEscape(handle))
	var resp neighborsResponse
	if err := c.getJSON(ctx, "neighbors", endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch neighbors for %s: %w", handle, err)
	}

	seen := make(map[string]struct{}, len(resp.Followers)+len(resp.Following))
	merged := make([]harvest.Candidate, 0, len(resp.Followers)+len(resp.Following))
	for _, candidate := range append(resp.Followers, resp.Following...) {
		if _, ok := seen[candidate.ID]; ok {
			continue
		}
		seen[candidate.ID] = struct{}{}
		merged = append(merged, candidate)
	}
	return merged, nil
}

// LookupAccount resolves a bare handle into a full candidate record.
func (c *Client) LookupAccount(ctx context.Context, handle string) (harvest.Candidate, error) {
	endpoint := fmt.Sprintf("%s/users/%s", c.cfg.BaseURL, url.PathEscape(handle))
	var candidate harvest.Candidate
	if err := c.getJSON(ctx, "lookup", endpoint, &candidate); err != nil {
		return harvest.Candidate{}, fmt.Errorf("lookup account %s: %w", handle, err)
	}
	return candidate, nil
}

// getJSON executes one GET with retries and unmarshals the body. A
// malformed payload is an error like any other; the caller never sees a
// partial result.
func (c *Client) getJSON(ctx context.Context, kind, endpoint string, out any) error {
	start := time.Now()
	defer func() {
		harvest.ObserveFetchDuration(kind, time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; ; attempt++ {
		body, err := c.getOnce(ctx, endpoint)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		lastErr = err
		if !c.retry.shouldRetry(err, attempt) {
			return lastErr
		}
		delay := c.retry.backoff(attempt)
		c.logger.Debug("retrying fetch",
			zap.String("kind", kind),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (c *Client) getOnce(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}

// statusError carries the HTTP status for retry classification.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.code)
}
