package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	svcmetrics "ORBScanner/internal/service/metrics"
	"ORBScanner/pkg/config"
	xhttp "ORBScanner/pkg/http"
)

// ErrNotConfigured is returned when no analytics base URL is set.
var ErrNotConfigured = errors.New("analytics service not configured")

// HTTPServiceBase is shared by the analytics HTTP clients.
type HTTPServiceBase struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
	backoff  time.Duration
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL from config.
func NewHTTPServiceBase(cfg *config.Config) *HTTPServiceBase {
	timeout := cfg.Analytics.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return newHTTPServiceBase(cfg.Analytics.BaseURL, cfg.Analytics.Retries, xhttp.NewClient(xhttp.WithTimeout(timeout)))
}

func newHTTPServiceBase(baseURL string, attempts int, client *xhttp.Client) *HTTPServiceBase {
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPServiceBase{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		attempts: attempts,
		backoff:  50 * time.Millisecond,
	}
}

// Enabled reports whether a base URL is configured.
func (b *HTTPServiceBase) Enabled() bool {
	return b != nil && b.baseURL != ""
}

// PostJSON posts payload to path under baseURL and decodes JSON into dest,
// recording latency under the path label.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if !b.Enabled() {
		return ErrNotConfigured
	}
	start := time.Now()
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Body:   payload,
	}, dest)
	svcmetrics.Observe(path, start, err)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transient failures with linear backoff.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	var err error
	for i := 1; i <= b.attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i == b.attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * b.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
