package numeric

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"R$ 100,00", 100, true},
		{"R$ 1.000.000,5", 1000000.5, true},
		{"12,5%", 12.5, true},
		{"1.234", 1234, true},
		{"1,2,3", 12.3, true},
		{"-7,25", -7.25, true},
		{"R$ -100,00", -100, true},
		{"  42  ", 42, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"-", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseOK(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParseOK(%q) ok=%v, want %v", tc.in, ok, tc.ok)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ParseOK(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDecimalExact(t *testing.T) {
	d, ok := ParseDecimal("R$ 0,10")
	if !ok {
		t.Fatal("expected ok")
	}
	if !d.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("got %s", d)
	}
}

func TestCoerce(t *testing.T) {
	if Coerce(3.5) != 3.5 {
		t.Fatal("float passthrough")
	}
	if Coerce(7) != 7 {
		t.Fatal("int passthrough")
	}
	if Coerce("2.500,75") != 2500.75 {
		t.Fatal("string parse")
	}
	if Coerce(math.NaN()) != 0 {
		t.Fatal("NaN must become 0")
	}
	if Coerce(struct{}{}) != 0 {
		t.Fatal("unknown types must become 0")
	}
}

func TestSafeDivAndRound(t *testing.T) {
	if SafeDiv(10, 0) != 0 {
		t.Fatal("zero denominator must yield 0")
	}
	if Round(1.005, 2) != 1.01 {
		t.Fatalf("round: %v", Round(1.005, 2))
	}
	if Round(-2.345, 2) != -2.35 {
		t.Fatalf("round negative: %v", Round(-2.345, 2))
	}
}

func TestFormat(t *testing.T) {
	if got := Format(1234567.891, 2); got != "1.234.567,89" {
		t.Fatalf("got %q", got)
	}
	if got := Format(-12, 0); got != "-12" {
		t.Fatalf("got %q", got)
	}
}
