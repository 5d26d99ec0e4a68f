package compare

import (
	"regexp"
	"strings"
)

// Category is a semantic bucket for launch metrics.
type Category string

const (
	CategoryInvestments Category = "investments"
	CategoryRevenues    Category = "revenues"
	CategoryLeads       Category = "leads"
	CategoryConversion  Category = "conversion"
	CategoryOther       Category = "other"
)

// CategoryKeywords assigns metrics containing any keyword to Category.
type CategoryKeywords struct {
	Category Category `mapstructure:"category"`
	Keywords []string `mapstructure:"keywords"`
}

// Rules holds every keyword heuristic used by the diff engine. The lists are
// matched case-insensitively as substrings and must stay stable so results
// line up with the dashboards they mirror.
type Rules struct {
	PercentageKeywords []string
	PercentagePattern  *regexp.Regexp
	InverseKeywords    []string
	MonetaryKeywords   []string
	Categories         []CategoryKeywords
	PriorityMetrics    []string
}

// DefaultRules returns the stock keyword sets. Note the CPL pattern: "CPL",
// "CPL1", "CPL2" ... are flagged as percentages.
func DefaultRules() Rules {
	return Rules{
		PercentageKeywords: []string{"faixa", "taxa", "percentual", "pico", "% "},
		PercentagePattern:  regexp.MustCompile(`(?i)^cpl\d*$`),
		InverseKeywords:    []string{"cpl", "custo por lead", "taxa de rejeição"},
		MonetaryKeywords:   []string{"investimento", "receita", "faturamento", "custo", "valor"},
		Categories: []CategoryKeywords{
			{Category: CategoryInvestments, Keywords: []string{"investimento", "custo", "gasto", "cpl", "cpm", "cpc"}},
			{Category: CategoryRevenues, Keywords: []string{"receita", "faturamento", "venda", "roi", "roas", "ticket"}},
			{Category: CategoryLeads, Keywords: []string{"lead", "inscri", "cadastro", "captação"}},
			{Category: CategoryConversion, Keywords: []string{"taxa", "convers", "percentual", "pico", "faixa", "%"}},
		},
		PriorityMetrics: []string{"Investimento Total", "Receita Total", "ROI", "Leads", "CPL"},
	}
}

// Order lists the buckets in presentation order.
func (r Rules) Order() []Category {
	out := make([]Category, 0, len(r.Categories)+1)
	for _, c := range r.Categories {
		out = append(out, c.Category)
	}
	return append(out, CategoryOther)
}

// IsPercentage reports whether name holds a percentage-like value.
func (r Rules) IsPercentage(name string) bool {
	lower := strings.ToLower(name)
	if containsAny(lower, r.PercentageKeywords) {
		return true
	}
	return r.PercentagePattern != nil && r.PercentagePattern.MatchString(strings.TrimSpace(name))
}

// IsInverse reports whether a lower value is the better outcome.
func (r Rules) IsInverse(name string) bool {
	return containsAny(strings.ToLower(name), r.InverseKeywords)
}

// IsMonetary reports whether name should be rendered as currency.
func (r Rules) IsMonetary(name string) bool {
	return containsAny(strings.ToLower(name), r.MonetaryKeywords)
}

// Categorize returns the first category whose keywords match name.
func (r Rules) Categorize(name string) Category {
	lower := strings.ToLower(name)
	for _, c := range r.Categories {
		if containsAny(lower, c.Keywords) {
			return c.Category
		}
	}
	return CategoryOther
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
