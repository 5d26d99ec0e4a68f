package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingAPIKey is returned by the values API path when no key is configured.
var ErrMissingAPIKey = errors.New("sheets api key not configured")

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status int
	Body   string
	URL    string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("http %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("http %d from %s: %s", e.Status, e.URL, body)
}

// IsStatus reports whether err wraps an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

// SheetFetcher retrieves raw spreadsheet data.
type SheetFetcher interface {
	ExportCSV(ctx context.Context, spreadsheetID, gid string) (string, error)
	GvizCSV(ctx context.Context, spreadsheetID, sheet string) (string, error)
	Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
}

// BackendFetcher reads the dashboard backend.
type BackendFetcher interface {
	Leads(ctx context.Context, q LeadsQuery) (*LeadsPage, error)
	AllLeads(ctx context.Context, q LeadsQuery) ([]Lead, error)
	DailyCheck(ctx context.Context, q DailyCheckQuery) (*DailyCheck, error)
}

// RetryPolicy bounds retries of rate limited requests.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	// Jitter is the upper bound of the random delay added to each wait.
	Jitter time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Base << attempt
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// httpClient issues GET requests with fixed headers and retries 429s.
type httpClient struct {
	client    *http.Client
	userAgent string
	accept    string
	retry     RetryPolicy
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func newHTTPClient(timeout time.Duration, userAgent, accept string, retry RetryPolicy, logger zerolog.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "sheetradar/1.0"
	}
	if retry.Base <= 0 {
		retry.Base = 500 * time.Millisecond
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	return &httpClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		accept:    accept,
		retry:     retry,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// get returns the body of a 2xx response. Only 429 is retried; every other
// failure is returned at once.
func (c *httpClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retry.delay(attempt - 1)
			c.logger.Warn().
				Int("attempt", attempt).
				Dur("wait", wait).
				Str("url", redact(endpoint)).
				Msg("rate limited, retrying")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := c.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !IsStatus(err, http.StatusTooManyRequests) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("giving up after %d retries: %w", c.retry.MaxRetries, lastErr)
}

func (c *httpClient) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.accept != "" {
		req.Header.Set("Accept", c.accept)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(payload), URL: redact(endpoint)}
	}
	return payload, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// redact hides the api key query parameter in logs and errors.
func redact(endpoint string) string {
	i := strings.Index(endpoint, "key=")
	if i < 0 {
		return endpoint
	}
	end := strings.IndexByte(endpoint[i:], '&')
	if end < 0 {
		return endpoint[:i] + "key=REDACTED"
	}
	return endpoint[:i] + "key=REDACTED" + endpoint[i+end:]
}
