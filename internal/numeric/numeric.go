// Package numeric coerces loosely formatted spreadsheet values into numbers.
//
// Grammar (Brazilian locale):
//   - every character other than digits, '.', ',' and '-' is discarded
//     ("R$", "%", spaces, letters);
//   - a '-' before the first digit makes the value negative; any other '-' is dropped;
//   - if the cleaned text contains a comma, the LAST comma is the decimal
//     separator and every other '.' or ',' is thousands grouping;
//   - without a comma every '.' is thousands grouping ("1.234" == 1234).
//
// Anything that still fails to parse yields 0 with ok=false.
package numeric

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal applies the locale grammar and returns an exact decimal.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	canonical, ok := canonicalize(raw)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseOK is ParseDecimal converted to float64.
func ParseOK(raw string) (float64, bool) {
	d, ok := ParseDecimal(raw)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// Parse returns the parsed value or 0.
func Parse(raw string) float64 {
	v, _ := ParseOK(raw)
	return v
}

// Coerce converts a loosely typed cell into a float64. Numbers pass through,
// strings go through Parse, everything else is 0.
func Coerce(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case decimal.Decimal:
		return n.InexactFloat64()
	case string:
		return Parse(n)
	case []byte:
		return Parse(string(n))
	default:
		return 0
	}
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// SafeDiv returns num/den, or 0 when den is zero.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

// Format renders a float with the Brazilian separators ("1.234,56").
func Format(v float64, places int) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', places, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

func canonicalize(raw string) (string, bool) {
	var kept []byte
	negative := false
	seenDigit := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			kept = append(kept, c)
		case c == '.' || c == ',':
			kept = append(kept, c)
		case c == '-':
			if !seenDigit && len(kept) == 0 {
				negative = true
			}
		}
	}
	if !seenDigit {
		return "", false
	}

	decimalAt := -1
	for i := len(kept) - 1; i >= 0; i-- {
		if kept[i] == ',' {
			decimalAt = i
			break
		}
	}

	out := make([]byte, 0, len(kept)+1)
	if negative {
		out = append(out, '-')
	}
	for i, c := range kept {
		switch {
		case i == decimalAt:
			out = append(out, '.')
		case c == '.' || c == ',':
			// grouping
		default:
			out = append(out, c)
		}
	}
	return string(out), true
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
