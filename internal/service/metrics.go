package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	ticks         *prometheus.CounterVec
	alerts        *prometheus.CounterVec
}

// NewMetrics creates and registers the instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetradar",
			Name:      "fetches_total",
			Help:      "Remote fetches by source and outcome.",
		}, []string{"source", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sheetradar",
			Name:      "fetch_duration_seconds",
			Help:      "Remote fetch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}, []string{"source"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetradar",
			Name:      "refresh_ticks_total",
			Help:      "Scheduled refresh ticks by outcome.",
		}, []string{"status"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetradar",
			Name:      "monitoring_alerts_total",
			Help:      "Monitoring alerts delivered by severity.",
		}, []string{"severity"}),
	}
	reg.MustRegister(m.fetches, m.fetchDuration, m.ticks, m.alerts)
	return m
}

func (m *Metrics) observeFetch(source string, start, end time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetches.WithLabelValues(source, status).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(end.Sub(start).Seconds())
}

func (m *Metrics) observeTick(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ticks.WithLabelValues(status).Inc()
}

func (m *Metrics) observeAlert(severity string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(severity).Inc()
}

// CacheCollector exports the service cache counters.
type CacheCollector struct {
	svc       *Service
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	coalesced *prometheus.Desc
	failures  *prometheus.Desc
	entries   *prometheus.Desc
}

// NewCacheCollector builds a collector over svc's caches.
func NewCacheCollector(svc *Service) *CacheCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("sheetradar", "cache", name), help, []string{"cache"}, nil)
	}
	return &CacheCollector{
		svc:       svc,
		hits:      desc("hits_total", "Reads served from a fresh entry."),
		misses:    desc("misses_total", "Reads that triggered a fetch."),
		coalesced: desc("coalesced_total", "Reads that joined an in-flight fetch."),
		failures:  desc("failures_total", "Fetches that returned an error."),
		entries:   desc("entries", "Stored entries."),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.coalesced
	ch <- c.failures
	ch <- c.entries
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	for name, st := range c.svc.CacheStats() {
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.coalesced, prometheus.CounterValue, float64(st.Coalesced), name)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(st.Failures), name)
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Entries), name)
	}
}

var _ prometheus.Collector = (*CacheCollector)(nil)
