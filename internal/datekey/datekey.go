// Package datekey turns spreadsheet date cells into canonical YYYY-MM-DD keys.
package datekey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical key layout.
const Layout = "2006-01-02"

// Context supplies the year for day/month-only cells.
type Context struct {
	// TabName is searched for a four digit year ("Junho 2025").
	TabName string
	// DefaultYear is used when the tab name carries no year.
	DefaultYear int
	// Now is the fallback clock; time.Now when nil.
	Now func() time.Time
}

var (
	tabYearRe = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)

	sentinels = map[string]struct{}{
		"total": {}, "totais": {}, "total geral": {}, "média": {}, "media": {}, "soma": {},
		"janeiro": {}, "fevereiro": {}, "março": {}, "marco": {}, "abril": {}, "maio": {},
		"junho": {}, "julho": {}, "agosto": {}, "setembro": {}, "outubro": {}, "novembro": {},
		"dezembro": {},
		"jan": {}, "fev": {}, "mar": {}, "abr": {}, "mai": {}, "jun": {}, "jul": {}, "ago": {},
		"set": {}, "out": {}, "nov": {}, "dez": {},
	}
)

// Year resolves the year used for DD/MM cells.
func (c Context) Year() int {
	if m := tabYearRe.FindStringSubmatch(c.TabName); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	if c.DefaultYear > 0 {
		return c.DefaultYear
	}
	if c.Now != nil {
		return c.Now().Year()
	}
	return time.Now().Year()
}

// Normalize converts DD/MM/YYYY, DD/MM/YY, DD/MM, DD-MM-YYYY and YYYY-MM-DD
// into a zero padded YYYY-MM-DD key. Sentinel rows ("Total", month names) and
// out of range day/month values are rejected.
func Normalize(raw string, ctx Context) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if _, ok := sentinels[strings.ToLower(s)]; ok {
		return "", false
	}
	// "02/06/2025 10:30:00" and "2025-06-02T10:30:00Z"
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	var day, month, year int
	var err error
	switch {
	case strings.Contains(s, "/"):
		day, month, year, err = slashed(s, ctx)
	case strings.Contains(s, "-"):
		day, month, year, err = dashed(s)
	default:
		return "", false
	}
	if err != nil {
		return "", false
	}
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// Parse parses a canonical key.
func Parse(key string) (time.Time, bool) {
	t, err := time.Parse(Layout, key)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Format renders t as a canonical key.
func Format(t time.Time) string {
	return t.Format(Layout)
}

func slashed(s string, ctx Context) (int, int, int, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		d, m, err := dayMonth(parts[0], parts[1])
		return d, m, ctx.Year(), err
	case 3:
		d, m, err := dayMonth(parts[0], parts[1])
		if err != nil {
			return 0, 0, 0, err
		}
		y, err := yearOf(parts[2])
		return d, m, y, err
	default:
		return 0, 0, 0, fmt.Errorf("unexpected date %q", s)
	}
}

func dashed(s string) (int, int, int, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("unexpected date %q", s)
	}
	first, err := atoi(parts[0])
	if err != nil {
		return 0, 0, 0, err
	}
	if first > 1000 {
		m, err := atoi(parts[1])
		if err != nil {
			return 0, 0, 0, err
		}
		d, err := atoi(parts[2])
		return d, m, first, err
	}
	m, err := atoi(parts[1])
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := yearOf(parts[2])
	return first, m, y, err
}

func dayMonth(d, m string) (int, int, error) {
	day, err := atoi(d)
	if err != nil {
		return 0, 0, err
	}
	month, err := atoi(m)
	return day, month, err
}

func yearOf(s string) (int, error) {
	s = strings.TrimSpace(s)
	y, err := atoi(s)
	if err != nil {
		return 0, err
	}
	if len(s) <= 2 {
		if y < 50 {
			return 2000 + y, nil
		}
		return 1900 + y, nil
	}
	return y, nil
}

func atoi(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 4 {
		return 0, fmt.Errorf("bad date component %q", s)
	}
	return strconv.Atoi(s)
}
