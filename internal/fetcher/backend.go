package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
)

// BackendOptions parameterise the backend REST client.
type BackendOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	PageSize  int
	Retry     RetryPolicy
}

// Backend reads leads and monitoring data from the dashboard backend.
type Backend struct {
	opts    BackendOptions
	logger  zerolog.Logger
	http    *httpClient
	baseURL string
}

// NewBackend constructs a backend client.
func NewBackend(opts BackendOptions, logger zerolog.Logger) *Backend {
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	logger = logging.Component(logger, "backend_fetcher")
	return &Backend{
		opts:    opts,
		logger:  logger,
		http:    newHTTPClient(opts.Timeout, opts.UserAgent, "application/json", opts.Retry, logger),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Flex decodes a JSON number, numeric string or null into a float.
type Flex float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Flex(numeric.Parse(s))
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("flex number %s: %w", b, err)
	}
	*f = Flex(v)
	return nil
}

// Lead is one captured lead.
type Lead struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CreatedAt   string `json:"createdAt"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	Score       *Flex  `json:"score"`
	Decile      *int   `json:"decil"`
}

// LeadsQuery filters the lead listing. Zero values are omitted.
type LeadsQuery struct {
	Page      int
	Limit     int
	Search    string
	StartDate string
	EndDate   string
}

// LeadsPage is one page of the lead listing.
type LeadsPage struct {
	Leads      []Lead `json:"leads"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}

// Leads fetches one page of leads.
func (b *Backend) Leads(ctx context.Context, q LeadsQuery) (*LeadsPage, error) {
	if b.baseURL == "" {
		return nil, fmt.Errorf("backend base url not configured")
	}
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.StartDate != "" {
		params.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("endDate", q.EndDate)
	}

	body, err := b.http.get(ctx, b.baseURL+"/leads?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	var page LeadsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode leads: %w", err)
	}
	return &page, nil
}

// AllLeads walks every page of the listing.
func (b *Backend) AllLeads(ctx context.Context, q LeadsQuery) ([]Lead, error) {
	if q.Limit <= 0 {
		q.Limit = b.opts.PageSize
	}
	var out []Lead
	for page := 1; ; page++ {
		q.Page = page
		res, err := b.Leads(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Leads...)
		if page >= res.TotalPages || len(res.Leads) == 0 {
			break
		}
	}
	b.logger.Debug().Int("leads", len(out)).Msg("fetched all leads")
	return out, nil
}

// Severity ranks monitoring alerts.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	switch Severity(strings.ToUpper(string(s))) {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as floor.
func (s Severity) AtLeast(floor Severity) bool {
	return s.Rank() >= floor.Rank()
}

// Alert is one finding of the daily check.
type Alert struct {
	Type     string          `json:"type"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// ThresholdDetails is the detail shape of threshold alerts.
type ThresholdDetails struct {
	Metric    string `json:"metric"`
	Value     Flex   `json:"value"`
	Threshold Flex   `json:"threshold"`
	Expected  Flex   `json:"expected"`
}

// DecodeDetails unmarshals the alert details into v.
func (a Alert) DecodeDetails(v any) error {
	if len(a.Details) == 0 {
		return fmt.Errorf("alert %s has no details", a.Type)
	}
	return json.Unmarshal(a.Details, v)
}

// DailyCheckQuery selects the monitoring window: either Hours or a date range.
type DailyCheckQuery struct {
	Hours     int
	StartDate string
	EndDate   string
}

// DailyCheck is the monitoring report.
type DailyCheck struct {
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
	Funnel      map[string]Flex `json:"funnel"`
	DataQuality map[string]Flex `json:"data_quality"`
	Alerts      []Alert         `json:"alerts"`
	Raw         json.RawMessage `json:"-"`
}

// DailyCheck runs the backend monitoring check.
func (b *Backend) DailyCheck(ctx context.Context, q DailyCheckQuery) (*DailyCheck, error) {
	if b.baseURL == "" {
		return nil, fmt.Errorf("backend base url not configured")
	}
	params := url.Values{}
	switch {
	case q.StartDate != "" || q.EndDate != "":
		params.Set("start_date", q.StartDate)
		params.Set("end_date", q.EndDate)
	case q.Hours > 0:
		params.Set("hours", strconv.Itoa(q.Hours))
	}
	endpoint := b.baseURL + "/monitoring/daily-check/railway"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	body, err := b.http.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("daily check: %w", err)
	}
	var res DailyCheck
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode daily check: %w", err)
	}
	res.Raw = json.RawMessage(body)
	return &res, nil
}

var _ BackendFetcher = (*Backend)(nil)
