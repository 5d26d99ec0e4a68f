package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
)

// SheetsOptions parameterise the Google Sheets fetcher.
type SheetsOptions struct {
	// DocsBaseURL serves the csv export and gviz endpoints.
	DocsBaseURL string
	// APIBaseURL serves the v4 values API.
	APIBaseURL string
	APIKey     string
	Timeout    time.Duration
	UserAgent  string
	Retry      RetryPolicy
}

// Sheets fetches spreadsheet contents.
type Sheets struct {
	opts    SheetsOptions
	logger  zerolog.Logger
	http    *httpClient
	docsURL string
	apiURL  string
}

// NewSheets constructs a sheets fetcher.
func NewSheets(opts SheetsOptions, logger zerolog.Logger) *Sheets {
	docsURL := strings.TrimRight(opts.DocsBaseURL, "/")
	if docsURL == "" {
		docsURL = "https://docs.google.com/spreadsheets/d"
	}
	apiURL := strings.TrimRight(opts.APIBaseURL, "/")
	if apiURL == "" {
		apiURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}
	logger = logging.Component(logger, "sheets_fetcher")

	return &Sheets{
		opts:    opts,
		logger:  logger,
		http:    newHTTPClient(opts.Timeout, opts.UserAgent, "text/csv, application/json", opts.Retry, logger),
		docsURL: docsURL,
		apiURL:  apiURL,
	}
}

// ExportCSV downloads a whole sheet as CSV, optionally a single tab by gid.
func (s *Sheets) ExportCSV(ctx context.Context, spreadsheetID, gid string) (string, error) {
	if spreadsheetID == "" {
		return "", fmt.Errorf("spreadsheet id required")
	}
	q := url.Values{"format": {"csv"}}
	if gid != "" {
		q.Set("gid", gid)
	}
	endpoint := fmt.Sprintf("%s/%s/export?%s", s.docsURL, url.PathEscape(spreadsheetID), q.Encode())

	body, err := s.http.get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("export csv %s: %w", spreadsheetID, err)
	}
	return string(body), nil
}

// GvizCSV downloads a named tab through the visualization endpoint.
func (s *Sheets) GvizCSV(ctx context.Context, spreadsheetID, sheet string) (string, error) {
	if spreadsheetID == "" {
		return "", fmt.Errorf("spreadsheet id required")
	}
	q := url.Values{"tqx": {"out:csv"}}
	if sheet != "" {
		q.Set("sheet", sheet)
	}
	endpoint := fmt.Sprintf("%s/%s/gviz/tq?%s", s.docsURL, url.PathEscape(spreadsheetID), q.Encode())

	body, err := s.http.get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("gviz %s/%s: %w", spreadsheetID, sheet, err)
	}
	return string(body), nil
}

// Values reads a range through the v4 API. The first row holds the headers.
func (s *Sheets) Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	if strings.TrimSpace(s.opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if spreadsheetID == "" || rng == "" {
		return nil, fmt.Errorf("spreadsheet id and range required")
	}
	endpoint := fmt.Sprintf("%s/%s/values/%s?%s",
		s.apiURL, url.PathEscape(spreadsheetID), url.PathEscape(rng),
		url.Values{"key": {s.opts.APIKey}}.Encode())

	body, err := s.http.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("values %s!%s: %w", spreadsheetID, rng, err)
	}

	var res valuesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	out := make([][]string, len(res.Values))
	for i, row := range res.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cellString(cell)
		}
		out[i] = cells
	}
	return out, nil
}

type valuesResponse struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// cellString renders a values-API cell. FORMATTED_VALUE responses are
// strings; numbers and booleans appear with other render options.
func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		// The decimal point is rewritten so the locale grammar reads it back.
		return strings.ReplaceAll(strconv.FormatFloat(c, 'f', -1, 64), ".", ",")
	default:
		return fmt.Sprint(c)
	}
}

var _ SheetFetcher = (*Sheets)(nil)
