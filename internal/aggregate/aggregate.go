// Package aggregate computes period totals and rates over daily records.
//
// Derived rates with a natural numerator and denominator (CTR, CPC, CPL, CPM,
// conversion, ROI, ROAS) are ratios of sums over the whole period. Rates that
// arrive already computed per day (conversion and connect rate columns) are
// averaged as the mean of the daily values. The two are not interchangeable.
package aggregate

import (
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
)

// Period is the inclusive date range covered by a snapshot.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Totals sums every metric over the period.
type Totals struct {
	Investment  float64 `json:"investment"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Leads       float64 `json:"leads"`
	PageViews   float64 `json:"page_views"`
	Sales       float64 `json:"sales"`
	Revenue     float64 `json:"revenue"`
}

// Averages holds the period rates.
type Averages struct {
	// ratio of sums
	CTR           float64 `json:"ctr"`
	CPC           float64 `json:"cpc"`
	CPL           float64 `json:"cpl"`
	CPM           float64 `json:"cpm"`
	Conversion    float64 `json:"conversion"`
	ROI           float64 `json:"roi"`
	ROAS          float64 `json:"roas"`
	CostPerSale   float64 `json:"cost_per_sale"`
	AverageTicket float64 `json:"average_ticket"`

	// mean of daily values
	ConversionRate float64 `json:"conversion_rate"`
	ConnectRate    float64 `json:"connect_rate"`
}

// Snapshot is the aggregate of a non-empty record sequence.
type Snapshot struct {
	Totals    Totals   `json:"totals"`
	Averages  Averages `json:"averages"`
	DataCount int      `json:"data_count"`
	Period    Period   `json:"period"`
}

// Aggregate returns nil for an empty input; callers must check before use.
func Aggregate(records []DailyRecord) *Snapshot {
	if len(records) == 0 {
		return nil
	}

	var t Totals
	var convSum, conSum float64
	period := Period{Start: records[0].Date, End: records[0].Date}
	for _, r := range records {
		t.Investment += r.Investment
		t.Impressions += r.Impressions
		t.Clicks += r.Clicks
		t.Leads += r.Leads
		t.PageViews += r.PageViews
		t.Sales += r.Sales
		t.Revenue += r.Revenue
		convSum += r.ConversionRate
		conSum += r.ConnectRate

		if r.Date != "" && (period.Start == "" || r.Date < period.Start) {
			period.Start = r.Date
		}
		if r.Date > period.End {
			period.End = r.Date
		}
	}

	n := float64(len(records))
	return &Snapshot{
		Totals:    t,
		Averages:  rates(t, convSum/n, conSum/n),
		DataCount: len(records),
		Period:    period,
	}
}

func rates(t Totals, conversionRate, connectRate float64) Averages {
	return Averages{
		CTR:            numeric.SafeDiv(t.Clicks, t.Impressions) * 100,
		CPC:            numeric.SafeDiv(t.Investment, t.Clicks),
		CPL:            numeric.SafeDiv(t.Investment, t.Leads),
		CPM:            numeric.SafeDiv(t.Investment, t.Impressions) * 1000,
		Conversion:     numeric.SafeDiv(t.Leads, t.PageViews) * 100,
		ROI:            numeric.SafeDiv(t.Revenue-t.Investment, t.Investment) * 100,
		ROAS:           numeric.SafeDiv(t.Revenue, t.Investment),
		CostPerSale:    numeric.SafeDiv(t.Investment, t.Sales),
		AverageTicket:  numeric.SafeDiv(t.Revenue, t.Sales),
		ConversionRate: conversionRate,
		ConnectRate:    connectRate,
	}
}

// Variation is the percentage change from previous to current, rounded to two
// decimals. A zero previous value yields 0.
func Variation(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return numeric.Round((current-previous)/previous*100, 2)
}

// DayVariation is the change of one metric against the preceding day.
type DayVariation struct {
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
	Previous  float64 `json:"previous"`
	Variation float64 `json:"variation"`
}

// DailyVariations compares every record with its chronological predecessor.
// The first day has no predecessor and reports a variation of 0.
func DailyVariations(records []DailyRecord, m Metric) []DayVariation {
	sorted := SortByDate(records)
	out := make([]DayVariation, 0, len(sorted))
	for i, r := range sorted {
		dv := DayVariation{Date: r.Date, Value: r.Value(m)}
		if i > 0 {
			dv.Previous = sorted[i-1].Value(m)
			dv.Variation = Variation(dv.Value, dv.Previous)
		}
		out = append(out, dv)
	}
	return out
}
