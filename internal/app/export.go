package app

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/compare"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/fetcher"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
)

// ExportOptions hold parameters for the export command.
type ExportOptions struct {
	Source     string
	From       string
	To         string
	PNGPath    string
	SQLitePath string
	// LeadsDir receives leads_devclub_{date}.csv.
	LeadsDir  string
	Search    string
	MaxPoints int
}

// Export writes daily records as PNG/SQLite and backend leads as CSV.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.PNGPath == "" && opts.SQLitePath == "" && opts.LeadsDir == "" {
		return errors.New("at least one of --png, --sqlite or --leads-dir must be provided")
	}
	if (opts.PNGPath != "" || opts.SQLitePath != "") && opts.Source == "" {
		return errors.New("--source is required for --png and --sqlite")
	}

	rt, err := a.build(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	if opts.LeadsDir != "" {
		leads, err := rt.svc.Leads(ctx, fetcher.LeadsQuery{Search: opts.Search, StartDate: opts.From, EndDate: opts.To})
		if err != nil {
			return err
		}
		path := filepath.Join(opts.LeadsDir, LeadsFileName(a.now()))
		if err := writeLeadsFile(path, leads); err != nil {
			return err
		}
		a.Logger.Info().Str("path", path).Int("leads", len(leads)).Msg("leads exported")
	}

	if opts.Source == "" {
		return nil
	}
	records, err := rt.svc.Records(ctx, opts.Source, opts.From, opts.To)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Str("source", opts.Source).Msg("no records found for export window")
		return nil
	}
	records = aggregate.SortByDate(records)

	if opts.SQLitePath != "" {
		if err := writeRecordsSQLite(ctx, opts.SQLitePath, opts.Source, records); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.SQLitePath).Int("records", len(records)).Msg("records exported to sqlite")
	}

	if opts.PNGPath != "" {
		points := downsample(records, a.Config.ResolveMaxPoints(opts.MaxPoints))
		if err := writeRecordsPNG(opts.PNGPath, opts.Source, points); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Int("total", len(records)).Int("exported", len(points)).Msg("chart exported")
	}
	return nil
}

// LeadsFileName names the leads export of day.
func LeadsFileName(day time.Time) string {
	return "leads_devclub_" + datekey.Format(day) + ".csv"
}

var leadsHeader = []string{"ID", "Nome", "Email", "Telefone", "Data de Cadastro", "UTM Source", "UTM Medium", "UTM Campaign", "Score", "Decil"}

func writeLeadsFile(path string, leads []fetcher.Lead) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := WriteLeadsCSV(file, leads); err != nil {
		return err
	}
	return file.Close()
}

// WriteLeadsCSV writes leads as UTF-8 CSV with a BOM and every field quoted.
func WriteLeadsCSV(w io.Writer, leads []fetcher.Lead) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("\ufeff")
	writeQuotedRow(bw, leadsHeader)
	for _, l := range leads {
		score := ""
		if l.Score != nil {
			score = strconv.FormatFloat(float64(*l.Score), 'f', -1, 64)
		}
		decile := ""
		if l.Decile != nil {
			decile = strconv.Itoa(*l.Decile)
		}
		writeQuotedRow(bw, []string{
			l.ID,
			l.Name,
			l.Email,
			l.Phone,
			leadDate(l.CreatedAt),
			l.UTMSource,
			l.UTMMedium,
			l.UTMCampaign,
			score,
			decile,
		})
	}
	return bw.Flush()
}

func writeQuotedRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

func leadDate(raw string) string {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return t.UTC().Format("02/01/2006 15:04")
}

func downsample[T any](items []T, limit int) []T {
	if limit <= 1 || len(items) <= limit {
		return items
	}

	result := make([]T, 0, limit)
	step := float64(len(items)-1) / float64(limit-1)
	for i := 0; i < limit; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS daily_records (
	source          TEXT NOT NULL,
	date            TEXT NOT NULL,
	investment      REAL NOT NULL,
	impressions     REAL NOT NULL,
	clicks          REAL NOT NULL,
	leads           REAL NOT NULL,
	page_views      REAL NOT NULL,
	sales           REAL NOT NULL,
	revenue         REAL NOT NULL,
	conversion_rate REAL NOT NULL,
	connect_rate    REAL NOT NULL,
	PRIMARY KEY (source, date)
)`

// writeRecordsSQLite replaces the rows of source in the daily_records table
// of the database at path, creating both when missing.
func writeRecordsSQLite(ctx context.Context, path, source string, records []aggregate.DailyRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create sqlite schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_records WHERE source = ?`, source); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO daily_records
		(source, date, investment, impressions, clicks, leads, page_views, sales, revenue, conversion_rate, connect_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, source, r.Date,
			r.Investment, r.Impressions, r.Clicks, r.Leads, r.PageViews,
			r.Sales, r.Revenue, r.ConversionRate, r.ConnectRate); err != nil {
			return fmt.Errorf("insert %s: %w", r.Date, err)
		}
	}
	return tx.Commit()
}

func writeRecordsPNG(path, source string, records []aggregate.DailyRecord) error {
	if len(records) < 2 {
		return errors.New("at least two days are needed to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(records))
	investment := make([]float64, 0, len(records))
	leads := make([]float64, 0, len(records))
	cpl := make([]float64, 0, len(records))
	for _, r := range records {
		day, ok := datekey.Parse(r.Date)
		if !ok {
			continue
		}
		x = append(x, day)
		investment = append(investment, r.Investment)
		leads = append(leads, r.Leads)
		cpl = append(cpl, numeric.SafeDiv(r.Investment, r.Leads))
	}
	if len(x) < 2 {
		return errors.New("at least two dated records are needed to draw a chart")
	}

	moneyFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  source,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Investment / Leads",
			ValueFormatter: moneyFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "CPL",
			ValueFormatter: moneyFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Investment",
				XValues: x,
				YValues: investment,
			},
			chart.TimeSeries{
				Name:    "Leads",
				XValues: x,
				YValues: leads,
			},
			chart.TimeSeries{
				Name:    "CPL",
				XValues: x,
				YValues: cpl,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

var compareHeader = []string{"Category", "Metric", "", "", "Diff", "Diff %", "Better"}

// writeCompareXLSX stores a comparison result as a one-sheet workbook.
func writeCompareXLSX(path string, res compare.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Comparison"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := append([]string(nil), compareHeader...)
	header[2], header[3] = res.Launch1, res.Launch2
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	row := 2
	for _, b := range res.Buckets {
		for _, d := range b.Metrics {
			values := []any{string(b.Category), d.Name, d.Value1, d.Value2, d.Diff, numeric.Round(d.DiffPercent, 2), d.Improved()}
			for c, v := range values {
				cell, _ := excelize.CoordinatesToCellName(c+1, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
			row++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return err
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
