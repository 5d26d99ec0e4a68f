// Package httpapi serves the pipeline results as a read-only JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/compare"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/fetcher"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/service"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/version"
)

type router struct {
	svc    *service.Service
	logger zerolog.Logger
}

// NewRouter builds the API handler. A nil gatherer disables /metrics.
func NewRouter(svc *service.Service, gatherer prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	rt := &router{svc: svc, logger: logging.Component(logger, "httpapi")}

	mux := chi.NewRouter()
	mux.Use(RequestID)
	mux.Use(AccessLog(rt.logger))
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", rt.healthz)
	mux.Get("/version", func(w http.ResponseWriter, r *http.Request) { rt.writeJSON(w, http.StatusOK, version.Get()) })
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	mux.Get("/sources", rt.listSources)
	mux.Route("/sources/{name}", func(r chi.Router) {
		r.Get("/snapshot", rt.snapshot)
		r.Get("/records", rt.records)
		r.Get("/rows", rt.rows)
		r.Get("/compare", rt.compare)
		r.Get("/history", rt.history)
		r.Get("/summary", rt.summary)
		r.Post("/refresh", rt.refresh)
		r.Delete("/cache", rt.invalidate)
	})

	mux.Get("/leads/daily", rt.leadsDaily)
	mux.Get("/monitoring", rt.monitoring)
	mux.Get("/monitoring/alerts", rt.alerts)

	mux.Get("/cache", func(w http.ResponseWriter, r *http.Request) { rt.writeJSON(w, http.StatusOK, rt.svc.CacheStats()) })
	mux.Delete("/cache", func(w http.ResponseWriter, r *http.Request) {
		rt.svc.ClearCaches()
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (rt *router) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		rt.logger.Debug().Err(err).Msg("failed to write health response")
	}
}

type sourceView struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Transport string `json:"transport"`
	CacheTTL  string `json:"cache_ttl"`
}

func (rt *router) listSources(w http.ResponseWriter, r *http.Request) {
	names := rt.svc.SourceNames()
	out := make([]sourceView, 0, len(names))
	for _, n := range names {
		src, _ := rt.svc.Source(n)
		out = append(out, sourceView{Name: n, Kind: src.Kind, Transport: src.Transport, CacheTTL: src.CacheTTL.String()})
	}
	rt.writeJSON(w, http.StatusOK, out)
}

func (rt *router) snapshot(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	snap, err := rt.svc.Snapshot(r.Context(), chi.URLParam(r, "name"), from, to)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, snap)
}

type recordsView struct {
	Records    []aggregate.DailyRecord  `json:"records"`
	Variations []aggregate.DayVariation `json:"variations,omitempty"`
}

func (rt *router) records(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	records, err := rt.svc.Records(r.Context(), chi.URLParam(r, "name"), from, to)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	view := recordsView{Records: aggregate.SortByDate(records)}
	if m := r.URL.Query().Get("variation"); m != "" {
		view.Variations = aggregate.DailyVariations(records, aggregate.Metric(m))
	}
	rt.writeJSON(w, http.StatusOK, view)
}

func (rt *router) rows(w http.ResponseWriter, r *http.Request) {
	rows, err := rt.svc.Rows(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, rows)
}

func (rt *router) compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		http.Error(w, "a and b required", http.StatusBadRequest)
		return
	}
	res, err := rt.svc.Compare(r.Context(), chi.URLParam(r, "name"), a, b)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, res)
}

func (rt *router) history(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	recs, err := rt.svc.History(r.Context(), chi.URLParam(r, "name"), limit)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, recs)
}

func (rt *router) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := rt.svc.Summary(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("metric"))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, sum)
}

func (rt *router) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Invalidate(chi.URLParam(r, "name")); err != nil {
		rt.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *router) refresh(w http.ResponseWriter, r *http.Request) {
	ds, err := rt.svc.Refresh(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, map[string]any{
		"source":     ds.Source,
		"fetched_at": ds.FetchedAt,
		"stale":      ds.Stale,
		"rows":       len(ds.Table.Rows),
		"records":    len(ds.Records),
		"launches":   len(ds.Launches),
	})
}

func (rt *router) leadsDaily(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	records, err := rt.svc.LeadRecords(r.Context(), fetcher.LeadsQuery{
		Search:    r.URL.Query().Get("search"),
		StartDate: from,
		EndDate:   to,
	})
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, recordsView{Records: records})
}

func (rt *router) monitoring(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	q := service.MonitoringQuery{StartDate: from, EndDate: to, Notify: new(bool)}
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "bad hours", http.StatusBadRequest)
			return
		}
		q.Hours = n
	}
	res, err := rt.svc.CheckMonitoring(r.Context(), q)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, map[string]any{
		"period":       res.Check.Period,
		"funnel":       res.Check.Funnel,
		"data_quality": res.Check.DataQuality,
		"alerts":       res.Check.Alerts,
		"selected":     res.Selected,
	})
}

func (rt *router) alerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	recs, err := rt.svc.RecentAlerts(r.Context(), limit)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.writeJSON(w, http.StatusOK, recs)
}

// limitParam reads a positive limit, 20 when absent.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 20, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "bad limit", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// dateRange reads from/to as any accepted date form and returns ISO keys.
func dateRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	var out [2]string
	for i, name := range []string{"from", "to"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		key, ok := datekey.Normalize(raw, datekey.Context{})
		if !ok {
			http.Error(w, "bad "+name+" date", http.StatusBadRequest)
			return "", "", false
		}
		out[i] = key
	}
	if out[0] != "" && out[1] != "" && out[0] > out[1] {
		http.Error(w, "from must not be after to", http.StatusBadRequest)
		return "", "", false
	}
	return out[0], out[1], true
}

func (rt *router) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, service.ErrUnknownSource),
		errors.Is(err, service.ErrNoData),
		errors.Is(err, service.ErrUnknownMetric),
		errors.Is(err, compare.ErrLaunchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrWrongKind):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNoBackend),
		errors.Is(err, storage.ErrNotConfigured),
		errors.Is(err, fetcher.ErrMissingAPIKey):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		rt.logger.Error().Err(err).Str("rid", RID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	rt.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (rt *router) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	if err := enc.Encode(v); err != nil {
		rt.logger.Warn().Err(err).Int("status", status).Msg("failed to write response")
	}
}
