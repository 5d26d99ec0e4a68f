package ingest

import (
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
)

// Column binds a DailyRecord metric to the header keywords that identify it.
type Column struct {
	Metric  aggregate.Metric
	Keyword aggregate.Keyword
}

// Schema describes how a typed sheet maps onto DailyRecord. Columns are
// resolved in order and a header is claimed by at most one metric.
type Schema struct {
	Name    string
	Date    aggregate.Keyword
	Columns []Column
}

func col(m aggregate.Metric, exclude []string, synonyms ...string) Column {
	return Column{Metric: m, Keyword: aggregate.Keyword{Name: string(m), Synonyms: synonyms, Exclude: exclude}}
}

var dateKeyword = aggregate.Keyword{Name: "date", Synonyms: []string{"data", "dia", "date"}, Exclude: []string{"atualiza", "média", "media"}}

// TrafficSchema reads the paid traffic sheet.
func TrafficSchema() Schema {
	return Schema{
		Name: "traffic",
		Date: dateKeyword,
		Columns: []Column{
			col(aggregate.MetricConversionRate, nil, "taxa de convers", "tx. convers", "tx convers"),
			col(aggregate.MetricConnectRate, nil, "connect rate", "taxa de conex"),
			col(aggregate.MetricInvestment, []string{"por ", "cpl", "cpc", "cpm"}, "investimento", "valor gasto", "valor investido", "gasto", "spend"),
			col(aggregate.MetricImpressions, nil, "impress"),
			col(aggregate.MetricClicks, []string{"custo", "cpc"}, "clique", "click"),
			col(aggregate.MetricLeads, []string{"custo", "cpl", "taxa"}, "lead", "cadastro", "inscri"),
			col(aggregate.MetricPageViews, []string{"custo"}, "page view", "pageview", "visualiza", "sessões", "sessoes"),
		},
	}
}

// SalesSchema reads the sales/revenue sheet.
func SalesSchema() Schema {
	return Schema{
		Name: "sales",
		Date: dateKeyword,
		Columns: []Column{
			col(aggregate.MetricInvestment, []string{"por ", "cpl", "cpa"}, "investimento", "valor gasto", "gasto"),
			col(aggregate.MetricRevenue, []string{"por "}, "receita", "faturamento", "valor vendido"),
			col(aggregate.MetricSales, []string{"custo", "valor", "taxa"}, "vendas", "venda", "qtd", "quantidade"),
			col(aggregate.MetricLeads, []string{"custo", "cpl", "taxa"}, "lead"),
			col(aggregate.MetricConversionRate, nil, "taxa de convers", "convers"),
		},
	}
}

// SchemaFor returns the built-in schema for a source kind.
func SchemaFor(kind string) (Schema, bool) {
	switch kind {
	case "traffic":
		return TrafficSchema(), true
	case "sales":
		return SalesSchema(), true
	default:
		return Schema{}, false
	}
}

// Bind resolves every column against the sheet headers. Unresolved metrics
// are absent from the result and read as 0.
func (s Schema) Bind(headers []string) (date string, columns map[aggregate.Metric]string) {
	claimed := make(map[string]bool)
	columns = make(map[aggregate.Metric]string)

	if h, ok := aggregate.FindHeader(headers, s.Date); ok {
		date = h
		claimed[h] = true
	}
	for _, c := range s.Columns {
		h, ok := findUnclaimed(headers, c.Keyword, claimed)
		if !ok {
			continue
		}
		claimed[h] = true
		columns[c.Metric] = h
	}
	return date, columns
}

func findUnclaimed(headers []string, kw aggregate.Keyword, claimed map[string]bool) (string, bool) {
	for _, h := range headers {
		if claimed[h] {
			continue
		}
		if kw.Matches(h) {
			return h, true
		}
	}
	return "", false
}
