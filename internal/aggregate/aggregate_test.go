package aggregate

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestAggregateEmpty(t *testing.T) {
	if snap := Aggregate(nil); snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
	if snap := Aggregate([]DailyRecord{}); snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
}

func TestAggregateRatioOfSums(t *testing.T) {
	records := []DailyRecord{
		{Date: "2025-01-01", Clicks: 1, Impressions: 10},
		{Date: "2025-01-02", Clicks: 10, Impressions: 1000},
	}
	snap := Aggregate(records)
	if snap == nil {
		t.Fatal("expected snapshot")
	}

	want := 11.0 / 1010.0 * 100
	if !almostEqual(snap.Averages.CTR, want) {
		t.Fatalf("CTR = %v, want %v", snap.Averages.CTR, want)
	}

	meanOfDaily := (1.0/10.0*100 + 10.0/1000.0*100) / 2
	if almostEqual(snap.Averages.CTR, meanOfDaily) {
		t.Fatalf("CTR must not be the mean of daily CTRs (%v)", meanOfDaily)
	}
}

func TestAggregateMeanOfDailyRates(t *testing.T) {
	records := []DailyRecord{
		{Date: "2025-01-03", ConversionRate: 10, Leads: 1, PageViews: 100},
		{Date: "2025-01-01", ConversionRate: 30, Leads: 9, PageViews: 10},
		{Date: "2025-01-02", ConversionRate: 20, ConnectRate: 60},
	}
	snap := Aggregate(records)
	if snap.DataCount != 3 {
		t.Fatalf("DataCount = %d", snap.DataCount)
	}
	if !almostEqual(snap.Averages.ConversionRate, 20) {
		t.Fatalf("ConversionRate = %v", snap.Averages.ConversionRate)
	}
	if !almostEqual(snap.Averages.ConnectRate, 20) {
		t.Fatalf("ConnectRate = %v", snap.Averages.ConnectRate)
	}
	if !almostEqual(snap.Averages.Conversion, 10.0/110.0*100) {
		t.Fatalf("Conversion = %v", snap.Averages.Conversion)
	}
	if snap.Period.Start != "2025-01-01" || snap.Period.End != "2025-01-03" {
		t.Fatalf("Period = %+v", snap.Period)
	}
}

func TestAggregateZeroDenominators(t *testing.T) {
	snap := Aggregate([]DailyRecord{{Date: "2025-01-01", Revenue: 50}})
	a := snap.Averages
	for name, v := range map[string]float64{
		"ctr": a.CTR, "cpc": a.CPC, "cpl": a.CPL, "cpm": a.CPM,
		"conversion": a.Conversion, "roi": a.ROI, "roas": a.ROAS,
		"cost_per_sale": a.CostPerSale, "average_ticket": a.AverageTicket,
	} {
		if v != 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s = %v, want 0", name, v)
		}
	}
}

func TestAggregateMoneyRates(t *testing.T) {
	snap := Aggregate([]DailyRecord{
		{Date: "2025-02-01", Investment: 100, Revenue: 250, Sales: 2, Impressions: 5000, Leads: 10},
		{Date: "2025-02-02", Investment: 100, Revenue: 50, Sales: 1, Impressions: 5000, Leads: 10},
	})
	a := snap.Averages
	if !almostEqual(a.ROI, 50) {
		t.Fatalf("ROI = %v", a.ROI)
	}
	if !almostEqual(a.ROAS, 1.5) {
		t.Fatalf("ROAS = %v", a.ROAS)
	}
	if !almostEqual(a.CPM, 20) {
		t.Fatalf("CPM = %v", a.CPM)
	}
	if !almostEqual(a.CPL, 10) {
		t.Fatalf("CPL = %v", a.CPL)
	}
	if !almostEqual(a.AverageTicket, 100) {
		t.Fatalf("AverageTicket = %v", a.AverageTicket)
	}
}

func TestVariation(t *testing.T) {
	if v := Variation(150, 100); v != 50 {
		t.Fatalf("got %v", v)
	}
	if v := Variation(10, 0); v != 0 {
		t.Fatalf("zero previous must yield 0, got %v", v)
	}
	if v := Variation(1, 3); v != -66.67 {
		t.Fatalf("got %v", v)
	}
}

func TestDailyVariationsUseChronologicalNeighbours(t *testing.T) {
	records := []DailyRecord{
		{Date: "2025-01-03", Leads: 30},
		{Date: "2025-01-01", Leads: 10},
		{Date: "2025-01-02", Leads: 20},
	}
	got := DailyVariations(records, MetricLeads)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Date != "2025-01-01" || got[0].Variation != 0 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Variation != 100 || got[1].Previous != 10 {
		t.Fatalf("second = %+v", got[1])
	}
	if got[2].Variation != 50 {
		t.Fatalf("third = %+v", got[2])
	}
}

func TestBetween(t *testing.T) {
	records := []DailyRecord{{Date: "2025-01-01"}, {Date: "2025-01-15"}, {Date: "2025-02-01"}}
	if got := Between(records, "2025-01-10", "2025-01-31"); len(got) != 1 || got[0].Date != "2025-01-15" {
		t.Fatalf("got %+v", got)
	}
	if got := Between(records, "", ""); len(got) != 3 {
		t.Fatalf("open bounds should keep all, got %d", len(got))
	}
}

func TestFindHeader(t *testing.T) {
	headers := []string{"Lançamento", "Custo por Lead", "Leads Totais", "Investimento Total (R$)"}
	kws := DefaultSummaryKeywords()

	leads, _ := kws.Lookup("leads")
	if h, ok := FindHeader(headers, leads); !ok || h != "Leads Totais" {
		t.Fatalf("leads header = %q %v", h, ok)
	}

	inv, _ := kws.Lookup("Investimento Total")
	row := map[string]string{"Investimento Total (R$)": "R$ 1.500,00"}
	if v, ok := FindValue(headers, row, inv); !ok || v != 1500 {
		t.Fatalf("investment = %v %v", v, ok)
	}

	rev, _ := kws.Lookup("Receita Total")
	if v, ok := FindValue(headers, row, rev); ok || v != 0 {
		t.Fatalf("missing metric should be (0,false), got %v %v", v, ok)
	}
}

func TestFindHeaderFirstHeaderWins(t *testing.T) {
	kw := Keyword{Name: "x", Synonyms: []string{"receita", "faturamento"}}
	h, ok := FindHeader([]string{"Faturamento Bruto", "Receita"}, kw)
	if !ok || h != "Faturamento Bruto" {
		t.Fatalf("header order must decide, got %q", h)
	}
}
