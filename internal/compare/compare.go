// Package compare diffs the metric sets of two launches.
package compare

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/tabular"
)

// ErrLaunchNotFound is returned when a launch name has no row in the sheet.
var ErrLaunchNotFound = errors.New("launch not found")

// MetricSet holds one launch's metrics keyed by the sheet header.
type MetricSet struct {
	Launch string
	// Names keeps sheet order.
	Names  []string
	Values map[string]any
}

// NewMetricSet builds an empty set for launch.
func NewMetricSet(launch string) *MetricSet {
	return &MetricSet{Launch: launch, Values: make(map[string]any)}
}

// Set stores value under name, keeping first-insertion order.
func (m *MetricSet) Set(name string, value any) {
	if _, ok := m.Values[name]; !ok {
		m.Names = append(m.Names, name)
	}
	m.Values[name] = value
}

// Float returns the coerced value of name (0 when absent).
func (m *MetricSet) Float(name string) float64 {
	return numeric.Coerce(m.Values[name])
}

var launchColumn = aggregate.Keyword{
	Name:     "launch",
	Synonyms: []string{"lançamento", "lancamento", "launch", "campanha", "turma", "nome"},
}

// Launches reads a launch sheet: one row per launch, one column per metric,
// the launch name in the first column matching launchColumn (or the first
// column when none does).
func Launches(table *tabular.Table) []*MetricSet {
	if len(table.Headers) == 0 {
		return nil
	}
	nameCol, ok := aggregate.FindHeader(table.Headers, launchColumn)
	if !ok {
		nameCol = table.Headers[0]
	}

	var out []*MetricSet
	for _, row := range table.Rows {
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		set := NewMetricSet(name)
		for _, h := range table.Headers {
			if h == "" || h == nameCol {
				continue
			}
			set.Set(h, row[h])
		}
		out = append(out, set)
	}
	return out
}

// FindLaunch returns the launch whose name equals name, ignoring case.
func FindLaunch(sets []*MetricSet, name string) (*MetricSet, error) {
	for _, s := range sets {
		if strings.EqualFold(strings.TrimSpace(s.Launch), strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrLaunchNotFound, name)
}

// MetricDiff compares one metric across two launches.
type MetricDiff struct {
	Name         string   `json:"name"`
	Value1       float64  `json:"value1"`
	Value2       float64  `json:"value2"`
	Diff         float64  `json:"diff"`
	DiffPercent  float64  `json:"diff_percent"`
	InverseDiff  bool     `json:"inverse_diff"`
	IsPercentage bool     `json:"is_percentage"`
	IsMonetary   bool     `json:"is_monetary"`
	Category     Category `json:"category"`
}

// Improved reports whether the first launch did better than the second.
func (d MetricDiff) Improved() bool {
	if d.InverseDiff {
		return d.Diff < 0
	}
	return d.Diff > 0
}

// DiffPercent is the relative change of value1 against value2. A zero
// value2 yields 0 when value1 is also zero and 100 otherwise, whatever the
// sign of value1.
func DiffPercent(value1, value2 float64) float64 {
	if value2 == 0 {
		if value1 == 0 {
			return 0
		}
		return 100
	}
	return (value1 - value2) / math.Abs(value2) * 100
}

// Bucket is the ordered diff list of one category.
type Bucket struct {
	Category Category     `json:"category"`
	Metrics  []MetricDiff `json:"metrics"`
}

// Result is the categorized comparison of two launches.
type Result struct {
	Launch1 string   `json:"launch1"`
	Launch2 string   `json:"launch2"`
	Buckets []Bucket `json:"buckets"`
}

// Bucket returns the metrics of one category.
func (r Result) Bucket(c Category) []MetricDiff {
	for _, b := range r.Buckets {
		if b.Category == c {
			return b.Metrics
		}
	}
	return nil
}

// All flattens the buckets in presentation order.
func (r Result) All() []MetricDiff {
	var out []MetricDiff
	for _, b := range r.Buckets {
		out = append(out, b.Metrics...)
	}
	return out
}

// Engine applies Rules to pairs of metric sets.
type Engine struct {
	rules Rules
}

// NewEngine constructs an engine.
func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Rules exposes the engine configuration.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Metric diffs a single metric.
func (e *Engine) Metric(name string, value1, value2 any) MetricDiff {
	v1 := numeric.Coerce(value1)
	v2 := numeric.Coerce(value2)
	return MetricDiff{
		Name:         name,
		Value1:       v1,
		Value2:       v2,
		Diff:         v1 - v2,
		DiffPercent:  DiffPercent(v1, v2),
		InverseDiff:  e.rules.IsInverse(name),
		IsPercentage: e.rules.IsPercentage(name),
		IsMonetary:   e.rules.IsMonetary(name),
		Category:     e.rules.Categorize(name),
	}
}

// Diff compares a against b. Priority metrics come first within their bucket
// in the order Rules declares; the rest follow a's sheet order and then
// names that exist only in b.
func (e *Engine) Diff(a, b *MetricSet) Result {
	names := unionNames(a, b)

	ordered := make([]string, 0, len(names))
	taken := make(map[string]bool, len(names))
	for _, p := range e.rules.PriorityMetrics {
		for _, n := range names {
			if !taken[n] && strings.EqualFold(strings.TrimSpace(n), p) {
				ordered = append(ordered, n)
				taken[n] = true
				break
			}
		}
	}
	for _, n := range names {
		if !taken[n] {
			ordered = append(ordered, n)
		}
	}

	byCat := make(map[Category][]MetricDiff)
	for _, n := range ordered {
		d := e.Metric(n, a.Values[n], b.Values[n])
		byCat[d.Category] = append(byCat[d.Category], d)
	}

	res := Result{Launch1: a.Launch, Launch2: b.Launch}
	for _, c := range e.rules.Order() {
		res.Buckets = append(res.Buckets, Bucket{Category: c, Metrics: byCat[c]})
	}
	return res
}

func unionNames(a, b *MetricSet) []string {
	seen := make(map[string]bool, len(a.Names)+len(b.Names))
	out := make([]string, 0, len(a.Names)+len(b.Names))
	for _, set := range []*MetricSet{a, b} {
		for _, n := range set.Names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
