package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy defines how transient fetch failures are retried.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy mirrors three attempts with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          15 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Client is the shared HTTP fetcher for all adapters. It sends browser-like
// headers, follows redirects, and retries timeouts, 429s and 5xx responses
// with exponential backoff.
type Client struct {
	http   *http.Client
	policy RetryPolicy
	logger *logrus.Logger
}

// NewClient builds a fetcher with the given per-request timeout.
func NewClient(timeout time.Duration, policy RetryPolicy, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		policy: policy,
		logger: logger,
	}
}

// Get fetches url and returns the response body. Transient failures are
// retried up to the policy's attempt ceiling before the page is abandoned.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	delay := c.policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.policy.BackoffMultiplier)
			if c.policy.MaxDelay > 0 && delay > c.policy.MaxDelay {
				delay = c.policy.MaxDelay
			}
		}

		body, retryable, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
		}).Warn("Fetch failed")
	}
	return "", fmt.Errorf("all %d attempts failed: %w", c.policy.MaxAttempts, lastErr)
}

func (c *Client) get(ctx context.Context, url string) (body string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("User-Agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9,es;q=0.8")
	req.Header.Set("Referer", "https://www.google.com/")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection resets are worth another try.
		return "", ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return "", true, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	return string(data), false, nil
}
