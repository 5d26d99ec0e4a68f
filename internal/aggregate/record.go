package aggregate

import (
	"sort"
)

// DailyRecord is one business day of one data source. Missing or unparsable
// cells are stored as 0.
type DailyRecord struct {
	Date           string  `json:"date"`
	Investment     float64 `json:"investment"`
	Impressions    float64 `json:"impressions"`
	Clicks         float64 `json:"clicks"`
	Leads          float64 `json:"leads"`
	PageViews      float64 `json:"page_views"`
	Sales          float64 `json:"sales"`
	Revenue        float64 `json:"revenue"`
	ConversionRate float64 `json:"conversion_rate"`
	ConnectRate    float64 `json:"connect_rate"`
}

// Metric names a numeric DailyRecord field.
type Metric string

const (
	MetricInvestment     Metric = "investment"
	MetricImpressions    Metric = "impressions"
	MetricClicks         Metric = "clicks"
	MetricLeads          Metric = "leads"
	MetricPageViews      Metric = "page_views"
	MetricSales          Metric = "sales"
	MetricRevenue        Metric = "revenue"
	MetricConversionRate Metric = "conversion_rate"
	MetricConnectRate    Metric = "connect_rate"
)

// Metrics lists every DailyRecord metric in display order.
var Metrics = []Metric{
	MetricInvestment,
	MetricImpressions,
	MetricClicks,
	MetricLeads,
	MetricPageViews,
	MetricSales,
	MetricRevenue,
	MetricConversionRate,
	MetricConnectRate,
}

// Value returns the field named by m.
func (r DailyRecord) Value(m Metric) float64 {
	switch m {
	case MetricInvestment:
		return r.Investment
	case MetricImpressions:
		return r.Impressions
	case MetricClicks:
		return r.Clicks
	case MetricLeads:
		return r.Leads
	case MetricPageViews:
		return r.PageViews
	case MetricSales:
		return r.Sales
	case MetricRevenue:
		return r.Revenue
	case MetricConversionRate:
		return r.ConversionRate
	case MetricConnectRate:
		return r.ConnectRate
	default:
		return 0
	}
}

// With returns a copy of r with m set to v.
func (r DailyRecord) With(m Metric, v float64) DailyRecord {
	switch m {
	case MetricInvestment:
		r.Investment = v
	case MetricImpressions:
		r.Impressions = v
	case MetricClicks:
		r.Clicks = v
	case MetricLeads:
		r.Leads = v
	case MetricPageViews:
		r.PageViews = v
	case MetricSales:
		r.Sales = v
	case MetricRevenue:
		r.Revenue = v
	case MetricConversionRate:
		r.ConversionRate = v
	case MetricConnectRate:
		r.ConnectRate = v
	}
	return r
}

// SortByDate returns the records ordered by date, oldest first.
func SortByDate(records []DailyRecord) []DailyRecord {
	out := make([]DailyRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Between keeps records whose date falls in [start, end]. Empty bounds are open.
func Between(records []DailyRecord, start, end string) []DailyRecord {
	out := make([]DailyRecord, 0, len(records))
	for _, r := range records {
		if start != "" && r.Date < start {
			continue
		}
		if end != "" && r.Date > end {
			continue
		}
		out = append(out, r)
	}
	return out
}
