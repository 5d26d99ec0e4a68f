package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestSplitLineQuotedFields(t *testing.T) {
	got, err := SplitLine(`"a,b","c""d"`, ',')
	if err != nil {
		t.Fatalf("SplitLine: %v", err)
	}
	want := []string{"a,b", `c"d`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestSplitLineTrimsAndKeepsEmpty(t *testing.T) {
	got, err := SplitLine(`  x , "  y  " ,,z`, ',')
	if err != nil {
		t.Fatalf("SplitLine: %v", err)
	}
	want := []string{"x", "y", "", "z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestSplitLineUnterminated(t *testing.T) {
	if _, err := SplitLine(`"open,field`, ','); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestParseCSVRoundTrip(t *testing.T) {
	headers := []string{"name", "city", "count"}
	rows := [][]string{
		{"ana", "recife", "10"},
		{"bruno", "natal", "20"},
		{"carla", "belem", "30"},
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(headers)
	_ = w.WriteAll(rows)

	table, err := ParseCSV(buf.String())
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if !reflect.DeepEqual(table.Headers, headers) {
		t.Fatalf("headers %#v", table.Headers)
	}
	if len(table.Rows) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(table.Rows))
	}
	for i, r := range rows {
		for j, h := range headers {
			if table.Rows[i][h] != r[j] {
				t.Fatalf("row %d %s: got %q want %q", i, h, table.Rows[i][h], r[j])
			}
		}
	}
}

func TestParseCSVSkipsBadRowsAndBlankLines(t *testing.T) {
	text := "DATA,VALOR\r\n\r\n01/01/2025,\"R$ 1,00\"\n02/01/2025\n\"broken,3\n03/01/2025,\"R$ 3,00\"\n"
	table, err := ParseCSV(text)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[1]["VALOR"] != "R$ 3,00" {
		t.Fatalf("unexpected value %q", table.Rows[1]["VALOR"])
	}
	if len(table.Skipped) != 2 {
		t.Fatalf("expected 2 skipped rows, got %v", table.Skipped)
	}
	if table.Skipped[0].Line != 4 {
		t.Fatalf("expected line 4 skipped first, got %d", table.Skipped[0].Line)
	}
}

func TestParseCSVMultilineQuotedFieldIsNotSupported(t *testing.T) {
	text := "a,b\n\"line one\nline two\",x\n1,2\n"
	table, err := ParseCSV(text)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0]["a"] != "1" {
		t.Fatalf("only the well formed row should survive: %#v", table.Rows)
	}
	if len(table.Skipped) != 2 {
		t.Fatalf("both physical lines of the multi-line field are skipped: %v", table.Skipped)
	}
}

func TestParseCSVEmpty(t *testing.T) {
	if _, err := ParseCSV("\n\n  \n"); !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
}

func TestFromValuesPadsShortRows(t *testing.T) {
	table, err := FromValues([][]string{
		{"Data", "Leads", "Obs"},
		{"01/01/2025", "5"},
		{},
		{"02/01/2025", "7", "ok", "extra"},
	})
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
	if v, ok := table.Rows[0]["Obs"]; !ok || v != "" {
		t.Fatalf("short row should be padded, got %q %v", v, ok)
	}
	if len(table.Skipped) != 1 || table.Skipped[0].Line != 4 {
		t.Fatalf("unexpected skipped %v", table.Skipped)
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Nº CLIQUES":             "n_cliques",
		"  Investimento  Total ": "investimento_total",
		"Taxa de Conversão (%)":  "taxa_de_converso_",
		"CPL":                    "cpl",
	}
	for in, want := range cases {
		if got := NormalizeHeader(in); got != want {
			t.Fatalf("NormalizeHeader(%q)=%q want %q", in, got, want)
		}
	}
}

func TestOrderedAndNumeric(t *testing.T) {
	table, err := ParseCSV("Data,Investimento (R$),Leads\n01/01/2025,\"1.234,56\",12\n")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	ordered := table.Ordered()
	if len(ordered) != 1 || ordered[0][1].Key != "investimento_r" {
		t.Fatalf("unexpected ordered rows %#v", ordered)
	}
	if v, ok := ordered[0].Get("leads"); !ok || v != "12" {
		t.Fatalf("Get leads = %q %v", v, ok)
	}

	v, ok := table.Numeric(table.Rows[0], "Investimento (R$)")
	if !ok || v != 1234.56 {
		t.Fatalf("Numeric = %v %v", v, ok)
	}

	cols := table.NumericColumns(func(h string) bool { return h == "Leads" })
	if !reflect.DeepEqual(cols, []string{"Investimento (R$)", "Leads"}) {
		t.Fatalf("NumericColumns = %#v", cols)
	}
}

func TestOrderedRowJSONKeepsColumnOrder(t *testing.T) {
	row := OrderedRow{{Key: "zeta", Value: "1"}, {Key: "alpha", Value: "a\"b"}}
	got, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(got) != `{"zeta":"1","alpha":"a\"b"}` {
		t.Fatalf("unexpected json %s", got)
	}
}
