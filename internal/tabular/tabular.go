// Package tabular parses spreadsheet exports (CSV text or values-API grids)
// into header-keyed rows.
//
// The CSV reader works one physical line at a time: a quoted field that
// contains a line break cannot be represented and the affected lines are
// reported as RowErrors.
package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
)

// ErrNoHeader is returned when the input has no non-blank line.
var ErrNoHeader = errors.New("tabular: no header row")

// RawRow maps a header to the trimmed cell text.
type RawRow map[string]string

// Field is one cell of an OrderedRow.
type Field struct {
	Key   string
	Value string
}

// OrderedRow keeps the sheet's column order. Keys are normalized headers.
type OrderedRow []Field

// Get returns the value stored under key.
func (r OrderedRow) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// MarshalJSON encodes the row as an object in column order.
func (r OrderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RowError records a skipped input line.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Table is a parsed sheet.
type Table struct {
	Headers []string
	Rows    []RawRow
	Skipped []RowError
}

// ParseCSV parses comma separated text.
func ParseCSV(text string) (*Table, error) {
	return ParseDelimited(text, ',')
}

// ParseDelimited parses text using delim as the field separator.
func ParseDelimited(text string, delim byte) (*Table, error) {
	lines := strings.Split(strings.TrimPrefix(text, "\ufeff"), "\n")

	table := &Table{}
	headerSeen := false
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo := i + 1

		fields, err := SplitLine(line, delim)
		if err != nil {
			if !headerSeen {
				return nil, fmt.Errorf("parse header: %w", err)
			}
			table.Skipped = append(table.Skipped, RowError{Line: lineNo, Reason: err.Error()})
			continue
		}

		if !headerSeen {
			table.Headers = fields
			headerSeen = true
			continue
		}

		if len(fields) != len(table.Headers) {
			table.Skipped = append(table.Skipped, RowError{
				Line:   lineNo,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(table.Headers), len(fields)),
			})
			continue
		}
		table.Rows = append(table.Rows, table.row(fields))
	}

	if !headerSeen {
		return nil, ErrNoHeader
	}
	return table, nil
}

// FromValues builds a table from a values-API grid. The API drops trailing
// empty cells, so short rows are padded; longer rows are skipped.
func FromValues(values [][]string) (*Table, error) {
	if len(values) == 0 {
		return nil, ErrNoHeader
	}

	table := &Table{Headers: make([]string, len(values[0]))}
	for i, h := range values[0] {
		table.Headers[i] = strings.TrimSpace(h)
	}

	for i, raw := range values[1:] {
		if blank(raw) {
			continue
		}
		if len(raw) > len(table.Headers) {
			table.Skipped = append(table.Skipped, RowError{
				Line:   i + 2,
				Reason: fmt.Sprintf("expected at most %d fields, got %d", len(table.Headers), len(raw)),
			})
			continue
		}
		fields := make([]string, len(table.Headers))
		for j, v := range raw {
			fields[j] = strings.TrimSpace(v)
		}
		table.Rows = append(table.Rows, table.row(fields))
	}
	return table, nil
}

func (t *Table) row(fields []string) RawRow {
	row := make(RawRow, len(fields))
	for i, h := range t.Headers {
		if h == "" {
			continue
		}
		if _, dup := row[h]; dup {
			continue
		}
		row[h] = fields[i]
	}
	return row
}

// Ordered returns the rows as ordered key/value lists keyed by normalized headers.
func (t *Table) Ordered() []OrderedRow {
	keys := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		keys[i] = NormalizeHeader(h)
	}

	out := make([]OrderedRow, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make(OrderedRow, 0, len(keys))
		for i, h := range t.Headers {
			if keys[i] == "" {
				continue
			}
			row = append(row, Field{Key: keys[i], Value: r[h]})
		}
		out = append(out, row)
	}
	return out
}

// Numeric parses row[header] with the locale number grammar.
func (t *Table) Numeric(row RawRow, header string) (float64, bool) {
	v, ok := row[header]
	if !ok {
		return 0, false
	}
	return numeric.ParseOK(v)
}

// NumericColumns returns headers treated as numeric: those carrying a currency
// or percent marker, plus any accepted by extra.
func (t *Table) NumericColumns(extra func(header string) bool) []string {
	var out []string
	for _, h := range t.Headers {
		if h == "" {
			continue
		}
		if IsMarkedNumeric(h) || (extra != nil && extra(h)) {
			out = append(out, h)
		}
	}
	return out
}

// IsMarkedNumeric reports whether a header carries a currency or percent marker.
func IsMarkedNumeric(header string) bool {
	return strings.Contains(header, "R$") || strings.Contains(header, "$") || strings.Contains(header, "%")
}

var (
	spaceRunRe = regexp.MustCompile(`\s+`)
	nonKeyRe   = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// NormalizeHeader lower-cases h, turns whitespace runs into "_" and strips
// every character outside [A-Za-z0-9_].
func NormalizeHeader(h string) string {
	s := strings.ToLower(strings.TrimSpace(h))
	s = spaceRunRe.ReplaceAllString(s, "_")
	return nonKeyRe.ReplaceAllString(s, "")
}

// SplitLine splits one physical line. Double quotes delimit fields that may
// contain the delimiter, "" inside quotes is a literal quote, and every field
// is trimmed after unquoting.
func SplitLine(line string, delim byte) ([]string, error) {
	var (
		fields  []string
		b       strings.Builder
		inQuote bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote && c == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				b.WriteByte('"')
				i++
				continue
			}
			inQuote = false
		case c == '"':
			inQuote = true
		case !inQuote && c == delim:
			fields = append(fields, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quoted field")
	}
	return append(fields, strings.TrimSpace(b.String())), nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
