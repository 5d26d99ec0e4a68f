package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/config"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/fetcher"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
)

const trafficSheet = "Data,Investimento,Cliques,Leads\n" +
	"01/01/2025,\"R$ 100,00\",10,4\n" +
	"02/01/2025,\"R$ 300,00\",30,6\n" +
	"03/01/2025,\"R$ 200,00\",20,10\n"

const launchSheet = "Lançamento,Investimento Total,Leads,CPL\n" +
	"LF1,\"1.000,00\",100,\"10,00\"\n" +
	"LF2,\"500,00\",80,\"6,25\"\n"

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/docs/traffic/export", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(trafficSheet))
	})
	mux.HandleFunc("/docs/launches/export", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(launchSheet))
	})
	mux.HandleFunc("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		score := fetcher.Flex(87.5)
		decile := 9
		page := fetcher.LeadsPage{TotalPages: 1, Total: 2, Leads: []fetcher.Lead{
			{ID: "1", Name: `Ana "Dev"`, Email: "ana@example.com", CreatedAt: "2025-01-02T13:45:00Z", UTMSource: "ig", Score: &score, Decile: &decile},
			{ID: "2", Name: "Bruno, Jr", Email: "bruno@example.com", CreatedAt: "03/01/2025"},
		}}
		json.NewEncoder(w).Encode(page)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Sheets: config.SheetsConfig{DocsBaseURL: srv.URL + "/docs", RequestTimeout: 5 * time.Second},
		Sources: map[string]config.SourceConfig{
			"trafego":     {Kind: config.KindTraffic, SpreadsheetID: "traffic", Transport: config.TransportCSV, CacheTTL: time.Minute},
			"lancamentos": {Kind: config.KindLaunches, SpreadsheetID: "launches", Transport: config.TransportCSV, CacheTTL: time.Minute},
		},
		Backend: config.BackendConfig{BaseURL: srv.URL + "/api", RequestTimeout: 5 * time.Second},
		Export:  config.ExportConfig{MaxDataPoints: 100},
	}

	a := NewApp(cfg, zerolog.Nop())
	out := &bytes.Buffer{}
	a.Out = out
	a.now = func() time.Time { return time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC) }
	return a, out
}

func TestSnapshotPrintsTotals(t *testing.T) {
	a, out := newTestApp(t)

	if err := a.Snapshot(context.Background(), SnapshotOptions{Source: "trafego"}); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	text := out.String()
	for _, want := range []string{"2025-01-01 .. 2025-01-03", "R$ 600,00", "R$ 30,00"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRecordsPrintsVariation(t *testing.T) {
	a, out := newTestApp(t)

	if err := a.Records(context.Background(), RecordsOptions{Source: "trafego", From: "2025-01-02"}); err != nil {
		t.Fatalf("Records: %v", err)
	}
	text := out.String()
	if strings.Contains(text, "2025-01-01") {
		t.Fatalf("records outside the range were printed:\n%s", text)
	}
	if !strings.Contains(text, "-33,33%") {
		t.Fatalf("missing variation:\n%s", text)
	}
}

func TestCompareWritesWorkbook(t *testing.T) {
	a, out := newTestApp(t)
	path := filepath.Join(t.TempDir(), "out", "compare.xlsx")

	err := a.Compare(context.Background(), CompareOptions{Source: "lancamentos", LaunchA: "LF1", LaunchB: "LF2", XLSXPath: path})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !strings.Contains(out.String(), "[investments]") {
		t.Fatalf("missing bucket header:\n%s", out.String())
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Comparison")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 metrics, got %d rows", len(rows))
	}
	if rows[0][2] != "LF1" || rows[0][3] != "LF2" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][1] != "Investimento Total" || rows[1][5] != "100" {
		t.Fatalf("unexpected first metric %v", rows[1])
	}
}

func TestExportRecordsToSQLiteAndPNG(t *testing.T) {
	a, _ := newTestApp(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.sqlite")
	pngPath := filepath.Join(dir, "chart.png")

	opts := ExportOptions{Source: "trafego", SQLitePath: dbPath, PNGPath: pngPath}
	if err := a.Export(context.Background(), opts); err != nil {
		t.Fatalf("Export: %v", err)
	}
	// A second export replaces the rows of the source.
	if err := a.Export(context.Background(), opts); err != nil {
		t.Fatalf("second Export: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	var total float64
	if err := db.QueryRow(`SELECT COUNT(*), SUM(investment) FROM daily_records WHERE source = 'trafego'`).Scan(&n, &total); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 3 || total != 600 {
		t.Fatalf("sqlite holds %d rows totalling %v", n, total)
	}

	png, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("chart is not a PNG")
	}
}

func TestExportLeadsCSV(t *testing.T) {
	a, _ := newTestApp(t)
	dir := t.TempDir()

	if err := a.Export(context.Background(), ExportOptions{LeadsDir: dir}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "leads_devclub_2025-01-05.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\xef\xbb\xbf")) {
		t.Fatal("missing BOM")
	}
	lines := strings.Split(strings.TrimSuffix(string(data[3:]), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != `"ID","Nome","Email","Telefone","Data de Cadastro","UTM Source","UTM Medium","UTM Campaign","Score","Decil"` {
		t.Fatalf("unexpected header %s", lines[0])
	}
	if lines[1] != `"1","Ana ""Dev""","ana@example.com","","02/01/2025 13:45","ig","","","87.5","9"` {
		t.Fatalf("unexpected row %s", lines[1])
	}
	if lines[2] != `"2","Bruno, Jr","bruno@example.com","","03/01/2025","","","","",""` {
		t.Fatalf("unexpected row %s", lines[2])
	}
}

func TestExportRequiresTarget(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.Export(context.Background(), ExportOptions{}); err == nil {
		t.Fatal("expected error without targets")
	}
	if err := a.Export(context.Background(), ExportOptions{PNGPath: "x.png"}); err == nil {
		t.Fatal("expected error without source")
	}
}

func TestHistoryRequiresDatabase(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.History(context.Background(), HistoryOptions{Source: "trafego", Limit: 5})
	if err == nil || !strings.Contains(err.Error(), "database not configured") {
		t.Fatalf("expected database error, got %v", err)
	}
}

func TestSummaryPrintsHeadlinesAndTotals(t *testing.T) {
	a, out := newTestApp(t)

	if err := a.Summary(context.Background(), SummaryOptions{Source: "lancamentos"}); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	text := out.String()
	for _, want := range []string{"LF1", "Investimento Total", "1.500,00", "16,25"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}

	if err := a.Summary(context.Background(), SummaryOptions{Source: "lancamentos", Metric: "lucro"}); err == nil {
		t.Fatal("expected unknown metric error")
	}
}

func TestAlertsRequireDatabase(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Alerts(context.Background(), AlertsOptions{Limit: 5})
	if err == nil || !strings.Contains(err.Error(), "database not configured") {
		t.Fatalf("expected database error, got %v", err)
	}
}

func TestWriteAlertsTable(t *testing.T) {
	var buf bytes.Buffer
	recs := []storage.MonitoringAlertRecord{{
		Type: "low_conversion", Severity: "HIGH", Message: "conversion\ndropped", Notified: true,
		CreatedAt: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC),
	}}
	if err := writeAlerts(&buf, recs); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	for _, want := range []string{"2025-01-05T12:00:00Z", "HIGH", "low_conversion", "true", "conversion dropped"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestBackfillDryRun(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.Backfill(context.Background(), BackfillOptions{DryRun: true}); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if err := a.Backfill(context.Background(), BackfillOptions{}); err == nil {
		t.Fatal("expected error without database")
	}
}

func TestSimulateAlertNeedsChannel(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.SimulateAlert(context.Background(), SimulateOptions{Severity: "HIGH"}); err == nil {
		t.Fatal("expected error with alerting disabled")
	}
	a.Config.Alerting.Enabled = true
	if err := a.SimulateAlert(context.Background(), SimulateOptions{Severity: "HIGH"}); err == nil {
		t.Fatal("expected error without a telegram channel")
	}
}

func TestSimulateAlertDeliversThroughTelegram(t *testing.T) {
	var got struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer tg.Close()

	a, _ := newTestApp(t)
	a.Config.Alerting = config.AlertingConfig{Enabled: true, Telegram: config.TelegramConfig{
		Enabled: true, BotToken: "token", ChatID: "42", APIBase: tg.URL,
	}}
	a.Config.Monitoring.MinSeverity = "LOW"

	err := a.SimulateAlert(context.Background(), SimulateOptions{Type: "low_conversion", Severity: "medium", Message: "conversion dropped"})
	if err != nil {
		t.Fatalf("SimulateAlert: %v", err)
	}
	if got.ChatID != "42" || !strings.Contains(got.Text, "[MEDIUM] low_conversion") {
		t.Fatalf("unexpected telegram payload %+v", got)
	}
}

func TestDownsampleKeepsEnds(t *testing.T) {
	in := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	got := downsample(in, 4)
	if len(got) != 4 || got[0] != 0 || got[3] != 9 {
		t.Fatalf("downsample = %v", got)
	}
	if same := downsample(in, 0); len(same) != len(in) {
		t.Fatal("a zero limit must keep every point")
	}
}
