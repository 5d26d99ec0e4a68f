package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/compare"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/service"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
)

// SnapshotOptions configure the snapshot command.
type SnapshotOptions struct {
	Source string
	From   string
	To     string
}

// Snapshot prints the period totals and rates of one source.
func (a *App) Snapshot(ctx context.Context, opts SnapshotOptions) error {
	rt, err := a.build(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	snap, err := rt.svc.Snapshot(ctx, opts.Source, opts.From, opts.To)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Source\t%s\n", opts.Source)
	fmt.Fprintf(writer, "Period\t%s .. %s\n", snap.Period.Start, snap.Period.End)
	fmt.Fprintf(writer, "Days\t%d\n", snap.DataCount)
	fmt.Fprintln(writer, "\t")

	t, av := snap.Totals, snap.Averages
	rows := []struct {
		label string
		value string
	}{
		{"Investment", money(t.Investment)},
		{"Impressions", numeric.Format(t.Impressions, 0)},
		{"Clicks", numeric.Format(t.Clicks, 0)},
		{"Leads", numeric.Format(t.Leads, 0)},
		{"Page views", numeric.Format(t.PageViews, 0)},
		{"Sales", numeric.Format(t.Sales, 0)},
		{"Revenue", money(t.Revenue)},
		{"CTR", percent(av.CTR)},
		{"CPC", money(av.CPC)},
		{"CPL", money(av.CPL)},
		{"CPM", money(av.CPM)},
		{"Conversion", percent(av.Conversion)},
		{"ROI", percent(av.ROI)},
		{"ROAS", numeric.Format(av.ROAS, 2)},
		{"Cost per sale", money(av.CostPerSale)},
		{"Average ticket", money(av.AverageTicket)},
		{"Conversion rate (daily mean)", percent(av.ConversionRate)},
		{"Connect rate (daily mean)", percent(av.ConnectRate)},
	}
	for _, r := range rows {
		fmt.Fprintf(writer, "%s\t%s\n", r.label, r.value)
	}
	return writer.Flush()
}

// RecordsOptions configure the records command.
type RecordsOptions struct {
	Source string
	From   string
	To     string
	// Metric drives the day-over-day variation column.
	Metric aggregate.Metric
}

// Records prints the daily records of one source, oldest first.
func (a *App) Records(ctx context.Context, opts RecordsOptions) error {
	rt, err := a.build(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	records, err := rt.svc.Records(ctx, opts.Source, opts.From, opts.To)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no records found")
		return nil
	}
	metric := opts.Metric
	if metric == "" {
		metric = aggregate.MetricInvestment
	}
	variations := aggregate.DailyVariations(records, metric)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Date\tInvestment\tClicks\tLeads\tSales\tRevenue\t%s Δ%%\n", metric)
	for i, r := range aggregate.SortByDate(records) {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date,
			money(r.Investment),
			numeric.Format(r.Clicks, 0),
			numeric.Format(r.Leads, 0),
			numeric.Format(r.Sales, 0),
			money(r.Revenue),
			signed(variations[i].Variation),
		)
	}
	return writer.Flush()
}

// CompareOptions configure the compare command.
type CompareOptions struct {
	Source   string
	LaunchA  string
	LaunchB  string
	XLSXPath string
}

// Compare prints the categorized diff of two launches.
func (a *App) Compare(ctx context.Context, opts CompareOptions) error {
	rt, err := a.build(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.svc.Compare(ctx, opts.Source, opts.LaunchA, opts.LaunchB)
	if err != nil {
		return err
	}
	if err := writeCompareTable(a.Out, res); err != nil {
		return err
	}
	if opts.XLSXPath != "" {
		if err := writeCompareXLSX(opts.XLSXPath, res); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.XLSXPath).Msg("comparison workbook written")
	}
	return nil
}

// HistoryOptions configure the history command.
type HistoryOptions struct {
	Source string
	Limit  int
}

// History prints the persisted snapshots of one source.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	rt, err := a.build(ctx, buildOptions{persist: true})
	if err != nil {
		return err
	}
	defer rt.close()

	recs, err := rt.svc.History(ctx, opts.Source, opts.Limit)
	if errors.Is(err, storage.ErrNotConfigured) {
		return errors.New("database not configured; cannot show history")
	}
	if err != nil {
		return err
	}
	return writeHistory(a.Out, recs)
}

// MonitorOptions configure the monitor command.
type MonitorOptions struct {
	Hours  int
	From   string
	To     string
	Notify bool
}

// Monitor runs one backend daily check and prints it.
func (a *App) Monitor(ctx context.Context, opts MonitorOptions) error {
	rt, err := a.build(ctx, buildOptions{persist: opts.Notify})
	if err != nil {
		return err
	}
	defer rt.close()

	notify := opts.Notify
	res, err := rt.svc.CheckMonitoring(ctx, service.MonitoringQuery{
		Hours:     opts.Hours,
		StartDate: opts.From,
		EndDate:   opts.To,
		Notify:    &notify,
	})
	if err != nil {
		return err
	}
	return writeMonitoring(a.Out, res)
}

// SummaryOptions configure the summary command.
type SummaryOptions struct {
	Source string
	Metric string
}

// Summary prints the headline metrics found in every row of a source and the
// totals of its numeric columns.
func (a *App) Summary(ctx context.Context, opts SummaryOptions) error {
	rt, err := a.build(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	sum, err := rt.svc.Summary(ctx, opts.Source, opts.Metric)
	if err != nil {
		return err
	}
	return writeSummary(a.Out, sum)
}

// AlertsOptions configure the alerts command.
type AlertsOptions struct {
	Limit int
}

// Alerts lists the stored monitoring alerts, newest first.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	rt, err := a.build(ctx, buildOptions{persist: true})
	if err != nil {
		return err
	}
	defer rt.close()

	recs, err := rt.svc.RecentAlerts(ctx, opts.Limit)
	if errors.Is(err, storage.ErrNotConfigured) {
		return errors.New("database not configured; cannot list alerts")
	}
	if err != nil {
		return err
	}
	return writeAlerts(a.Out, recs)
}

func writeSummary(out io.Writer, sum *service.Summary) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Row\t%s\n", strings.Join(sum.Metrics, "\t"))
	for _, h := range sum.Headlines {
		cells := make([]string, len(sum.Metrics))
		for i, m := range sum.Metrics {
			cells[i] = "-"
			if v, ok := h.Values[m]; ok {
				cells[i] = numeric.Format(v, 2)
			}
		}
		fmt.Fprintf(writer, "%s\t%s\n", sanitizeInline(h.Label), strings.Join(cells, "\t"))
	}
	fmt.Fprintln(writer, "\t")

	fmt.Fprintln(writer, "Column\tTotal\tRows")
	for _, c := range sum.Columns {
		fmt.Fprintf(writer, "%s\t%s\t%d\n", c.Header, numeric.Format(c.Total, 2), c.Parsed)
	}
	return writer.Flush()
}

func writeAlerts(out io.Writer, recs []storage.MonitoringAlertRecord) error {
	if len(recs) == 0 {
		fmt.Fprintln(out, "no alerts stored")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSeverity\tType\tNotified\tMessage")
	for _, rec := range recs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%t\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339), rec.Severity, rec.Type, rec.Notified, sanitizeInline(rec.Message))
	}
	return writer.Flush()
}

func writeHistory(out io.Writer, recs []storage.SnapshotRecord) error {
	if len(recs) == 0 {
		fmt.Fprintln(out, "no snapshots found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPeriod\tDays\tInvestment\tRevenue\tLeads\tStatus\tError")
	for _, rec := range recs {
		errMsg := ""
		if rec.Error != nil {
			errMsg = sanitizeInline(*rec.Error)
		}
		period := ""
		if rec.PeriodStart != "" {
			period = rec.PeriodStart + ".." + rec.PeriodEnd
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.Bucket.UTC().Format(time.RFC3339),
			period,
			rec.DataCount,
			formatDecimal(rec.Investment, 2),
			formatDecimal(rec.Revenue, 2),
			formatDecimal(rec.Leads, 0),
			rec.Status,
			errMsg,
		)
	}
	return writer.Flush()
}

func writeCompareTable(out io.Writer, res compare.Result) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, b := range res.Buckets {
		fmt.Fprintf(writer, "[%s]\n", b.Category)
		fmt.Fprintf(writer, "Metric\t%s\t%s\tDiff\tDiff %%\t\n", res.Launch1, res.Launch2)
		for _, d := range b.Metrics {
			mark := "-"
			if d.Diff != 0 {
				mark = "worse"
				if d.Improved() {
					mark = "better"
				}
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
				d.Name, metricValue(d, d.Value1), metricValue(d, d.Value2), metricValue(d, d.Diff), signed(d.DiffPercent), mark)
		}
		fmt.Fprintln(writer, "\t")
	}
	return writer.Flush()
}

func writeMonitoring(out io.Writer, res *service.MonitoringResult) error {
	check := res.Check
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Period\t%s .. %s\n", check.Period.Start, check.Period.End)

	keys := make([]string, 0, len(check.Funnel))
	for k := range check.Funnel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(writer, "%s\t%s\n", k, numeric.Format(float64(check.Funnel[k]), 2))
	}
	fmt.Fprintln(writer, "\t")

	fmt.Fprintln(writer, "Severity\tType\tMessage")
	for _, al := range check.Alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", al.Severity, al.Type, sanitizeInline(al.Message))
	}
	fmt.Fprintln(writer, "\t")
	fmt.Fprintf(writer, "Selected\t%d\n", len(res.Selected))
	fmt.Fprintf(writer, "Delivered\t%d\n", len(res.Delivered))
	fmt.Fprintf(writer, "Duplicates\t%d\n", res.Duplicates)
	return writer.Flush()
}

func metricValue(d compare.MetricDiff, v float64) string {
	switch {
	case d.IsPercentage:
		return percent(v)
	case d.IsMonetary:
		return money(v)
	default:
		return numeric.Format(v, 2)
	}
}

func money(v float64) string {
	return "R$ " + numeric.Format(v, 2)
}

func percent(v float64) string {
	return numeric.Format(v, 2) + "%"
}

func signed(v float64) string {
	if v > 0 {
		return "+" + percent(v)
	}
	return percent(v)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
