// Package ingest turns parsed sheets into typed daily records.
package ingest

import (
	"fmt"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/tabular"
)

// IssueKind classifies a non-fatal ingestion problem.
type IssueKind string

const (
	IssueSkippedLine   IssueKind = "skipped_line"
	IssueBadDate       IssueKind = "bad_date"
	IssueDuplicateDate IssueKind = "duplicate_date"
	IssueCoercion      IssueKind = "coercion"
	IssueMissingColumn IssueKind = "missing_column"
)

// Issue is reported for every row or cell that could not be used as is.
type Issue struct {
	Kind   IssueKind
	Row    int
	Column string
	Value  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s row=%d column=%q value=%q", i.Kind, i.Row, i.Column, i.Value)
}

// Result is the outcome of one typed ingestion.
type Result struct {
	Records []aggregate.DailyRecord
	Issues  []Issue
	// Columns is the header chosen for each metric.
	Columns map[aggregate.Metric]string
}

// Records maps table rows onto DailyRecords using schema. Rows without a
// valid date are dropped, the first row wins for a repeated date, and cells
// that fail numeric coercion count as 0. Output is sorted by date.
func Records(table *tabular.Table, schema Schema, dates datekey.Context) Result {
	res := Result{}
	for _, se := range table.Skipped {
		res.Issues = append(res.Issues, Issue{Kind: IssueSkippedLine, Row: se.Line, Value: se.Reason})
	}

	dateCol, columns := schema.Bind(table.Headers)
	res.Columns = columns
	if dateCol == "" {
		res.Issues = append(res.Issues, Issue{Kind: IssueMissingColumn, Column: schema.Date.Name})
		return res
	}
	for _, c := range schema.Columns {
		if _, ok := columns[c.Metric]; !ok {
			res.Issues = append(res.Issues, Issue{Kind: IssueMissingColumn, Column: string(c.Metric)})
		}
	}

	seen := make(map[string]bool, len(table.Rows))
	for i, row := range table.Rows {
		key, ok := datekey.Normalize(row[dateCol], dates)
		if !ok {
			if row[dateCol] != "" {
				res.Issues = append(res.Issues, Issue{Kind: IssueBadDate, Row: i + 1, Column: dateCol, Value: row[dateCol]})
			}
			continue
		}
		if seen[key] {
			res.Issues = append(res.Issues, Issue{Kind: IssueDuplicateDate, Row: i + 1, Column: dateCol, Value: key})
			continue
		}
		seen[key] = true

		rec := aggregate.DailyRecord{Date: key}
		for _, c := range schema.Columns {
			h, ok := columns[c.Metric]
			if !ok {
				continue
			}
			raw := row[h]
			v, ok := numeric.ParseOK(raw)
			if !ok && raw != "" && raw != "-" {
				res.Issues = append(res.Issues, Issue{Kind: IssueCoercion, Row: i + 1, Column: h, Value: raw})
			}
			rec = rec.With(c.Metric, v)
		}
		res.Records = append(res.Records, rec)
	}

	res.Records = aggregate.SortByDate(res.Records)
	return res
}

// AllData is the untyped passthrough: every row as an ordered list keyed by
// normalized header, dropping rows whose cells are all empty.
func AllData(table *tabular.Table) []tabular.OrderedRow {
	rows := table.Ordered()
	out := rows[:0]
	for _, r := range rows {
		for _, f := range r {
			if f.Value != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// CountPerDay builds one record per distinct date key with m set to the
// number of occurrences. Events from the backend (leads, purchases) feed the
// aggregator this way.
func CountPerDay(keys []string, m aggregate.Metric) []aggregate.DailyRecord {
	counts := make(map[string]float64)
	order := make([]string, 0)
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	out := make([]aggregate.DailyRecord, 0, len(order))
	for _, k := range order {
		out = append(out, aggregate.DailyRecord{Date: k}.With(m, counts[k]))
	}
	return aggregate.SortByDate(out)
}
