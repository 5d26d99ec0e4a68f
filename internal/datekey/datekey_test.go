package datekey

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	ctx := Context{DefaultYear: 2025}
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"02/06/2025", "2025-06-02", true},
		{"2/6/2025", "2025-06-02", true},
		{"15/03/24", "2024-03-15", true},
		{"15/03/75", "1975-03-15", true},
		{"15/03/49", "2049-03-15", true},
		{"15/03", "2025-03-15", true},
		{"02-06-2025", "2025-06-02", true},
		{"2025-06-02", "2025-06-02", true},
		{"02/06/2025 10:30:00", "2025-06-02", true},
		{"31/13/2025", "", false},
		{"00/01/2025", "", false},
		{"32/01/2025", "", false},
		{"Total", "", false},
		{"Junho", "", false},
		{"", "", false},
		{"abc", "", false},
		{"1/2/3/4", "", false},
	}
	for _, tc := range cases {
		got, ok := Normalize(tc.in, ctx)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Normalize(%q) = %q,%v; want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestContextYear(t *testing.T) {
	if y := (Context{TabName: "Tráfego Junho 2024", DefaultYear: 2025}).Year(); y != 2024 {
		t.Fatalf("tab year should win, got %d", y)
	}
	if y := (Context{TabName: "Tráfego", DefaultYear: 2023}).Year(); y != 2023 {
		t.Fatalf("default year expected, got %d", y)
	}
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if y := (Context{Now: now}).Year(); y != 2026 {
		t.Fatalf("clock year expected, got %d", y)
	}
	got, ok := Normalize("05/07", Context{TabName: "LF 2022"})
	if !ok || got != "2022-07-05" {
		t.Fatalf("got %q %v", got, ok)
	}
}
