package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestSheets(srvURL string, opts SheetsOptions) *Sheets {
	opts.DocsBaseURL = srvURL
	opts.APIBaseURL = srvURL + "/v4"
	s := NewSheets(opts, noopLogger())
	s.http.sleep = noSleep
	return s
}

func TestExportCSVBuildsURLAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/abc/export" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "csv" || r.URL.Query().Get("gid") != "42" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "radar-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte("Data,Leads\n01/01/2025,3\n"))
	}))
	defer srv.Close()

	s := newTestSheets(srv.URL, SheetsOptions{UserAgent: "radar-test", Timeout: time.Second})
	text, err := s.ExportCSV(context.Background(), "abc", "42")
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if !strings.HasPrefix(text, "Data,Leads") {
		t.Fatalf("unexpected body %q", text)
	}
}

func TestGvizCSVNamedSheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/abc/gviz/tq" || r.URL.Query().Get("sheet") != "Março 2025" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`"Data","Leads"`))
	}))
	defer srv.Close()

	s := newTestSheets(srv.URL, SheetsOptions{})
	if _, err := s.GvizCSV(context.Background(), "abc", "Março 2025"); err != nil {
		t.Fatalf("GvizCSV: %v", err)
	}
}

func TestValuesRequiresAPIKey(t *testing.T) {
	s := NewSheets(SheetsOptions{}, noopLogger())
	if _, err := s.Values(context.Background(), "abc", "A1:B2"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestValuesDecodesCells(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("missing key")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"A1:C3","values":[["Data","Investimento","Leads"],["01/01/2025","R$ 10,00",3],["02/01/2025",1234.5]]}`))
	}))
	defer srv.Close()

	s := newTestSheets(srv.URL, SheetsOptions{APIKey: "secret"})
	rows, err := s.Values(context.Background(), "abc", "Tráfego!A1:C3")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(rows) != 3 || rows[1][2] != "3" || rows[2][1] != "1234,5" {
		t.Fatalf("unexpected rows %#v", rows)
	}
}

func TestNon2xxIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	var hits atomic.Int32
	s := newTestSheets(srv.URL, SheetsOptions{Retry: RetryPolicy{MaxRetries: 3}})
	s.http.sleep = func(context.Context, time.Duration) error {
		hits.Add(1)
		return nil
	}

	_, err := s.ExportCSV(context.Background(), "abc", "")
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("only 429 must be retried")
	}
}

func TestRateLimitRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("Data\n"))
	}))
	defer srv.Close()

	var waits []time.Duration
	s := newTestSheets(srv.URL, SheetsOptions{Retry: RetryPolicy{MaxRetries: 3, Base: 100 * time.Millisecond}})
	s.http.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	if _, err := s.ExportCSV(context.Background(), "abc", ""); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(waits) != 2 || waits[0] != 100*time.Millisecond || waits[1] != 200*time.Millisecond {
		t.Fatalf("expected exponential waits, got %v", waits)
	}
}

func TestRateLimitGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := newTestSheets(srv.URL, SheetsOptions{Retry: RetryPolicy{MaxRetries: 2}})
	_, err := s.ExportCSV(context.Background(), "abc", "")
	if !IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("expected 429 failure, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", calls.Load())
	}
}

func TestTimeoutIsOrdinaryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	s := newTestSheets(srv.URL, SheetsOptions{Timeout: 20 * time.Millisecond})
	if _, err := s.ExportCSV(context.Background(), "abc", ""); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRedact(t *testing.T) {
	got := redact("https://x/values/A1?key=abc&foo=1")
	if got != "https://x/values/A1?key=REDACTED&foo=1" {
		t.Fatalf("got %s", got)
	}
}
