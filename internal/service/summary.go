package service

import (
	"context"
	"fmt"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/tabular"
)

// Headline is one sheet row reduced to the summary metrics found in it.
type Headline struct {
	Label  string             `json:"label"`
	Values map[string]float64 `json:"values"`
}

// ColumnTotal sums one numeric column over every row.
type ColumnTotal struct {
	Header string  `json:"header"`
	Total  float64 `json:"total"`
	Parsed int     `json:"parsed"`
}

// Summary is the keyword driven view of a sheet of any kind.
type Summary struct {
	Source    string        `json:"source"`
	Metrics   []string      `json:"metrics"`
	Headlines []Headline    `json:"headlines"`
	Columns   []ColumnTotal `json:"columns"`
}

// Summary looks up the headline metrics ("Investimento Total", "Receita
// Total", ...) in every row of name and sums its numeric columns. A non-empty
// metric restricts the view to that keyword entry.
func (s *Service) Summary(ctx context.Context, name, metric string) (*Summary, error) {
	ds, err := s.Dataset(ctx, name)
	if err != nil {
		return nil, err
	}
	kws := s.summary
	if metric != "" {
		kw, ok := kws.Lookup(metric)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
		}
		kws = aggregate.Keywords{kw}
	}
	return summarize(name, ds.Table, kws), nil
}

func summarize(name string, table *tabular.Table, kws aggregate.Keywords) *Summary {
	out := &Summary{Source: name, Metrics: make([]string, 0, len(kws))}
	for _, kw := range kws {
		out.Metrics = append(out.Metrics, kw.Name)
	}

	// The first column names the row (launch, date, campaign).
	var labelHeader string
	if len(table.Headers) > 0 {
		labelHeader = table.Headers[0]
	}
	for _, row := range table.Rows {
		h := Headline{Label: row[labelHeader], Values: make(map[string]float64)}
		for _, kw := range kws {
			if v, ok := aggregate.FindValue(table.Headers, row, kw); ok {
				h.Values[kw.Name] = v
			}
		}
		if len(h.Values) > 0 {
			out.Headlines = append(out.Headlines, h)
		}
	}

	matched := func(header string) bool {
		for _, kw := range kws {
			if kw.Matches(header) {
				return true
			}
		}
		return false
	}
	for _, header := range table.NumericColumns(matched) {
		col := ColumnTotal{Header: header}
		for _, row := range table.Rows {
			if v, ok := table.Numeric(row, header); ok {
				col.Total += v
				col.Parsed++
			}
		}
		out.Columns = append(out.Columns, col)
	}
	return out
}
