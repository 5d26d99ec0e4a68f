package aggregate

import (
	"strings"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/numeric"
)

// Keyword maps a logical metric to the header fragments that identify it.
// Matching is a best-effort heuristic: lower-cased substring search.
type Keyword struct {
	Name     string   `mapstructure:"name"`
	Synonyms []string `mapstructure:"synonyms"`
	// Exclude rejects headers that also contain one of these fragments.
	Exclude []string `mapstructure:"exclude"`
}

// Keywords is an ordered keyword table.
type Keywords []Keyword

// DefaultSummaryKeywords locates headline metrics in arbitrarily shaped sheets.
func DefaultSummaryKeywords() Keywords {
	return Keywords{
		{Name: "Investimento Total", Synonyms: []string{"investimento total", "investimento", "valor investido", "gasto total"}},
		{Name: "Receita Total", Synonyms: []string{"receita total", "faturamento total", "receita", "faturamento"}},
		{Name: "Vendas", Synonyms: []string{"vendas", "qtd vendas", "quantidade de vendas"}},
		{Name: "Leads", Synonyms: []string{"leads", "total de leads", "cadastros"}, Exclude: []string{"custo", "cpl", "taxa"}},
		{Name: "ROI", Synonyms: []string{"roi"}},
		{Name: "ROAS", Synonyms: []string{"roas"}},
		{Name: "CPL", Synonyms: []string{"cpl", "custo por lead"}},
	}
}

// Lookup returns the keyword entry named name.
func (k Keywords) Lookup(name string) (Keyword, bool) {
	for _, kw := range k {
		if strings.EqualFold(kw.Name, name) {
			return kw, true
		}
	}
	return Keyword{}, false
}

// Matches reports whether header contains one of the synonyms and none of the exclusions.
func (kw Keyword) Matches(header string) bool {
	h := strings.ToLower(header)
	for _, ex := range kw.Exclude {
		if strings.Contains(h, strings.ToLower(ex)) {
			return false
		}
	}
	for _, syn := range kw.Synonyms {
		if strings.Contains(h, strings.ToLower(syn)) {
			return true
		}
	}
	return false
}

// FindHeader returns the first header, in header order, matched by kw.
func FindHeader(headers []string, kw Keyword) (string, bool) {
	for _, h := range headers {
		if kw.Matches(h) {
			return h, true
		}
	}
	return "", false
}

// FindValue locates the metric in a header -> value row and coerces it.
// A missing metric yields (0, false).
func FindValue(headers []string, row map[string]string, kw Keyword) (float64, bool) {
	h, ok := FindHeader(headers, kw)
	if !ok {
		return 0, false
	}
	return numeric.ParseOK(row[h])
}
