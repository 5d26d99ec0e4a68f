package compare

import (
	"errors"
	"math"
	"testing"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/tabular"
)

func TestDiffPercent(t *testing.T) {
	cases := []struct {
		name   string
		v1, v2 float64
		want   float64
	}{
		{"both zero", 0, 0, 0},
		{"from zero", 5, 0, 100},
		{"negative from zero", -5, 0, 100},
		{"to zero", 0, 5, -100},
		{"growth", 150, 100, 50},
		{"negative base", -50, -100, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DiffPercent(tc.v1, tc.v2); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("DiffPercent(%v, %v) = %v, want %v", tc.v1, tc.v2, got, tc.want)
			}
		})
	}
}

func TestRulesFlags(t *testing.T) {
	r := DefaultRules()

	if !r.IsPercentage("CPL7") || !r.IsPercentage("cpl") {
		t.Fatal("CPL followed by digits must be a percentage")
	}
	if r.IsPercentage("CPL Médio") {
		t.Fatal("CPL with suffix text is not matched by the pattern")
	}
	if !r.IsPercentage("Taxa de Conversão") {
		t.Fatal("taxa is a percentage keyword")
	}
	if !r.IsInverse("Custo por Lead") || !r.IsInverse("Taxa de Rejeição") {
		t.Fatal("expected inverse metrics")
	}
	if r.IsInverse("Receita Total") {
		t.Fatal("revenue is not inverse")
	}
	if !r.IsMonetary("Valor Investido") || r.IsMonetary("Leads") {
		t.Fatal("unexpected monetary flags")
	}
}

func TestCategorize(t *testing.T) {
	r := DefaultRules()
	cases := map[string]Category{
		"Investimento Total": CategoryInvestments,
		"CPL":                CategoryInvestments,
		"Receita Total":      CategoryRevenues,
		"ROAS":               CategoryRevenues,
		"Leads":              CategoryLeads,
		"Taxa de Conversão":  CategoryConversion,
		"Alunos":             CategoryOther,
	}
	for name, want := range cases {
		if got := r.Categorize(name); got != want {
			t.Errorf("Categorize(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestDiffOrdering(t *testing.T) {
	a := NewMetricSet("L1")
	a.Set("Gasto Extra", "R$ 10,00")
	a.Set("CPL", "R$ 5,00")
	a.Set("Investimento Total", "R$ 1.000,00")
	a.Set("Leads", 200)
	a.Set("Alunos", "12")

	b := NewMetricSet("L2")
	b.Set("Investimento Total", "R$ 800,00")
	b.Set("Leads", 100)
	b.Set("CPL", "R$ 8,00")
	b.Set("Cadastros Orgânicos", "40")

	res := NewEngine(DefaultRules()).Diff(a, b)
	if res.Launch1 != "L1" || res.Launch2 != "L2" {
		t.Fatalf("unexpected launches %+v", res)
	}

	order := []Category{CategoryInvestments, CategoryRevenues, CategoryLeads, CategoryConversion, CategoryOther}
	if len(res.Buckets) != len(order) {
		t.Fatalf("expected %d buckets, got %d", len(order), len(res.Buckets))
	}
	for i, c := range order {
		if res.Buckets[i].Category != c {
			t.Fatalf("bucket %d = %s, want %s", i, res.Buckets[i].Category, c)
		}
	}

	inv := res.Bucket(CategoryInvestments)
	names := []string{}
	for _, d := range inv {
		names = append(names, d.Name)
	}
	want := []string{"Investimento Total", "CPL", "Gasto Extra"}
	if len(names) != len(want) {
		t.Fatalf("investments = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("investments = %v, want %v", names, want)
		}
	}

	leads := res.Bucket(CategoryLeads)
	if len(leads) != 2 || leads[0].Name != "Leads" || leads[1].Name != "Cadastros Orgânicos" {
		t.Fatalf("leads bucket = %+v", leads)
	}
	if leads[1].Value1 != 0 || leads[1].Value2 != 40 || leads[1].DiffPercent != -100 {
		t.Fatalf("B-only metric = %+v", leads[1])
	}

	total := inv[0]
	if total.Value1 != 1000 || total.Value2 != 800 || total.Diff != 200 || total.DiffPercent != 25 {
		t.Fatalf("investment diff = %+v", total)
	}
	if !total.IsMonetary {
		t.Fatal("investment must be monetary")
	}

	cpl := inv[1]
	if !cpl.InverseDiff || !cpl.Improved() {
		t.Fatalf("lower CPL is an improvement: %+v", cpl)
	}
}

func TestLaunchesFromSheet(t *testing.T) {
	text := "Lançamento,Investimento Total,Leads\n" +
		"LF10,\"R$ 1.500,00\",300\n" +
		",1,1\n" +
		"LF11,\"R$ 2.000,00\",350\n"
	table, err := tabular.ParseCSV(text)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	sets := Launches(table)
	if len(sets) != 2 {
		t.Fatalf("expected 2 launches, got %d", len(sets))
	}
	got, err := FindLaunch(sets, "lf11")
	if err != nil {
		t.Fatalf("FindLaunch: %v", err)
	}
	if got.Float("Investimento Total") != 2000 || got.Float("Leads") != 350 {
		t.Fatalf("unexpected values %+v", got.Values)
	}
	if len(got.Names) != 2 || got.Names[0] != "Investimento Total" {
		t.Fatalf("names must keep sheet order: %v", got.Names)
	}

	if _, err := FindLaunch(sets, "LF99"); !errors.Is(err, ErrLaunchNotFound) {
		t.Fatalf("expected ErrLaunchNotFound, got %v", err)
	}
}
