// Package service runs the fetch, parse and aggregate pipeline over the
// configured sheet sources.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/alerting"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/cache"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/compare"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/config"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/fetcher"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/ingest"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/scheduler"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/tabular"
)

var (
	// ErrUnknownSource is returned for a source name missing from configuration.
	ErrUnknownSource = errors.New("unknown source")
	// ErrNoData is returned when a period holds no records.
	ErrNoData = errors.New("no data for period")
	// ErrWrongKind is returned when an operation does not apply to a source kind.
	ErrWrongKind = errors.New("operation not supported for source kind")
	// ErrNoBackend is returned by backend operations when no client is configured.
	ErrNoBackend = errors.New("backend not configured")
	// ErrUnknownMetric is returned for a summary metric missing from the keyword table.
	ErrUnknownMetric = errors.New("unknown summary metric")
)

// Dataset is one parsed fetch of a source.
type Dataset struct {
	Source    string
	Kind      string
	FetchedAt time.Time
	// Stale is set when a refresh failed and the previous payload is served.
	Stale bool

	Table    *tabular.Table
	Records  []aggregate.DailyRecord
	Issues   []ingest.Issue
	Columns  map[aggregate.Metric]string
	Launches []*compare.MetricSet
	Rows     []tabular.OrderedRow
}

// Deps are the collaborators of a Service. Nil stores disable persistence.
type Deps struct {
	Sheets    fetcher.SheetFetcher
	Backend   fetcher.BackendFetcher
	Records   storage.DailyRecordStore
	Snapshots storage.SnapshotStore
	Alerts    storage.AlertStore
	Locker    storage.AdvisoryLocker
	Notifier  alerting.Notifier
	Scheduler *scheduler.Scheduler
	Metrics   *Metrics
	Now       func() time.Time
}

// Service orchestrates fetching, parsing, aggregation, persistence and alerting.
type Service struct {
	deps       Deps
	sources    map[string]config.SourceConfig
	caches     map[string]*cache.Cache[*Dataset]
	leads      *cache.Cache[[]fetcher.Lead]
	engine     *compare.Engine
	summary    aggregate.Keywords
	monitoring config.MonitoringConfig
	cooldown   time.Duration
	retention  time.Duration
	lockKey    int64
	logger     zerolog.Logger
	now        func() time.Time

	mu sync.Mutex
	// recent is the in-memory alert dedup used when no AlertStore is wired.
	recent map[string]time.Time
}

// New constructs the pipeline service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Notifier == nil {
		deps.Notifier = alerting.NewLogNotifier(logger)
	}

	s := &Service{
		deps:       deps,
		sources:    make(map[string]config.SourceConfig, len(cfg.Sources)),
		caches:     make(map[string]*cache.Cache[*Dataset], len(cfg.Sources)),
		engine:     compare.NewEngine(cfg.CompareRules()),
		summary:    cfg.SummaryKeywords(),
		monitoring: cfg.Monitoring,
		cooldown:   cfg.Alerting.Cooldown,
		retention:  cfg.Alerting.Retention,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		logger:     logging.Component(logger, "service"),
		now:        now,
		recent:     make(map[string]time.Time),
	}
	for name, src := range cfg.Sources {
		s.sources[name] = src
		s.caches[name] = cache.New[*Dataset](src.CacheTTL, cache.WithClock(now))
	}
	backendTTL := cfg.Backend.CacheTTL
	if backendTTL <= 0 {
		backendTTL = 5 * time.Minute
	}
	s.leads = cache.New[[]fetcher.Lead](backendTTL, cache.WithClock(now))
	return s
}

// Run begins the refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, s.ProcessTick)
}

// Source returns the configuration of name.
func (s *Service) Source(name string) (config.SourceConfig, error) {
	src, ok := s.sources[name]
	if !ok {
		return config.SourceConfig{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return src, nil
}

// Dataset returns the cached dataset of name, fetching when stale. When the
// fetch fails and an earlier payload exists, that payload is returned with
// Stale set and the error is only logged.
func (s *Service) Dataset(ctx context.Context, name string) (*Dataset, error) {
	src, err := s.Source(name)
	if err != nil {
		return nil, err
	}
	ds, err := s.caches[name].GetOrFetch(ctx, name, s.loader(name, src))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return s.fallback(ctx, name, src, err)
	}
	return ds, nil
}

// Refresh fetches name regardless of cache age and stores the result. A read
// of the same source running meanwhile shares the fetch.
func (s *Service) Refresh(ctx context.Context, name string) (*Dataset, error) {
	src, err := s.Source(name)
	if err != nil {
		return nil, err
	}
	ds, err := s.caches[name].Refresh(ctx, name, s.loader(name, src))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return s.fallback(ctx, name, src, err)
	}
	return ds, nil
}

// Invalidate drops the cached dataset of name so the next read fetches.
func (s *Service) Invalidate(name string) error {
	if _, err := s.Source(name); err != nil {
		return err
	}
	s.caches[name].Invalidate(name)
	return nil
}

func (s *Service) loader(name string, src config.SourceConfig) cache.FetchFunc[*Dataset] {
	return func(ctx context.Context) (*Dataset, error) {
		return s.load(ctx, name, src)
	}
}

// fallback serves the previous payload of name after a failed fetch. Without
// one, typed sources fall back to the daily records stored by earlier ticks.
func (s *Service) fallback(ctx context.Context, name string, src config.SourceConfig, err error) (*Dataset, error) {
	prev, at, ok := s.caches[name].Stale(name)
	if ok {
		s.logger.Warn().Err(err).
			Str("source", name).
			Time("fetched_at", at).
			Msg("refresh failed, serving previous data")
		stale := *prev
		stale.Stale = true
		return &stale, nil
	}

	if s.deps.Records == nil || (src.Kind != config.KindTraffic && src.Kind != config.KindSales) {
		return nil, err
	}
	records, listErr := s.deps.Records.ListDailyRecords(ctx, name, time.Time{}, lastDay)
	if listErr != nil || len(records) == 0 {
		if listErr != nil && !errors.Is(listErr, storage.ErrNotConfigured) {
			s.logger.Warn().Err(listErr).Str("source", name).Msg("failed to read stored records")
		}
		return nil, err
	}
	s.logger.Warn().Err(err).
		Str("source", name).
		Int("records", len(records)).
		Msg("refresh failed, serving stored records")
	return &Dataset{
		Source:  name,
		Kind:    src.Kind,
		Stale:   true,
		Table:   &tabular.Table{},
		Records: records,
	}, nil
}

// lastDay is the open upper bound of stored record reads.
var lastDay = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Records returns the daily records of a traffic or sales source within
// [start, end]; empty bounds are open.
func (s *Service) Records(ctx context.Context, name, start, end string) ([]aggregate.DailyRecord, error) {
	ds, err := s.Dataset(ctx, name)
	if err != nil {
		return nil, err
	}
	if ds.Kind != config.KindTraffic && ds.Kind != config.KindSales {
		return nil, fmt.Errorf("%w: records of %s source %q", ErrWrongKind, ds.Kind, name)
	}
	return aggregate.Between(ds.Records, start, end), nil
}

// Snapshot aggregates the records of name within [start, end].
func (s *Service) Snapshot(ctx context.Context, name, start, end string) (*aggregate.Snapshot, error) {
	records, err := s.Records(ctx, name, start, end)
	if err != nil {
		return nil, err
	}
	snap := aggregate.Aggregate(records)
	if snap == nil {
		return nil, fmt.Errorf("%w: source %q", ErrNoData, name)
	}
	return snap, nil
}

// Compare diffs two launches of a launches source.
func (s *Service) Compare(ctx context.Context, name, launchA, launchB string) (compare.Result, error) {
	ds, err := s.Dataset(ctx, name)
	if err != nil {
		return compare.Result{}, err
	}
	if ds.Kind != config.KindLaunches {
		return compare.Result{}, fmt.Errorf("%w: compare on %s source %q", ErrWrongKind, ds.Kind, name)
	}
	a, err := compare.FindLaunch(ds.Launches, launchA)
	if err != nil {
		return compare.Result{}, err
	}
	b, err := compare.FindLaunch(ds.Launches, launchB)
	if err != nil {
		return compare.Result{}, err
	}
	return s.engine.Diff(a, b), nil
}

// Rows returns every row of name keyed by normalized header, in sheet order.
func (s *Service) Rows(ctx context.Context, name string) ([]tabular.OrderedRow, error) {
	ds, err := s.Dataset(ctx, name)
	if err != nil {
		return nil, err
	}
	if ds.Rows != nil {
		return ds.Rows, nil
	}
	return ingest.AllData(ds.Table), nil
}

// Leads returns every backend lead matching q, cached per query.
func (s *Service) Leads(ctx context.Context, q fetcher.LeadsQuery) ([]fetcher.Lead, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	key := strings.Join([]string{q.Search, q.StartDate, q.EndDate}, "|")
	return s.leads.GetOrFetch(ctx, key, func(ctx context.Context) ([]fetcher.Lead, error) {
		start := s.now()
		leads, err := s.deps.Backend.AllLeads(ctx, q)
		s.deps.Metrics.observeFetch("backend_leads", start, s.now(), err)
		return leads, err
	})
}

// LeadRecords buckets backend leads by creation day so they feed the
// aggregator as DailyRecords with only Leads set.
func (s *Service) LeadRecords(ctx context.Context, q fetcher.LeadsQuery) ([]aggregate.DailyRecord, error) {
	leads, err := s.Leads(ctx, q)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(leads))
	dropped := 0
	for _, l := range leads {
		key, ok := LeadDay(l.CreatedAt)
		if !ok {
			dropped++
			continue
		}
		keys = append(keys, key)
	}
	if dropped > 0 {
		s.logger.Debug().Int("dropped", dropped).Msg("leads without a usable creation date")
	}
	return ingest.CountPerDay(keys, aggregate.MetricLeads), nil
}

// LeadDay extracts the ISO day of a backend timestamp. RFC 3339 values are
// converted to UTC; anything else goes through the date normalizer.
func LeadDay(createdAt string) (string, bool) {
	createdAt = strings.TrimSpace(createdAt)
	if createdAt == "" {
		return "", false
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		return datekey.Format(t.UTC()), true
	}
	return datekey.Normalize(createdAt, datekey.Context{})
}

// SourceNames lists the configured sources.
func (s *Service) SourceNames() []string {
	cfg := config.Config{Sources: s.sources}
	return cfg.SourceNames()
}

// CacheStats reports the cache counters per source plus the leads cache.
func (s *Service) CacheStats() map[string]cache.Stats {
	out := make(map[string]cache.Stats, len(s.caches)+1)
	for name, c := range s.caches {
		out[name] = c.Stats()
	}
	out["backend_leads"] = s.leads.Stats()
	return out
}

// ClearCaches drops every cached payload.
func (s *Service) ClearCaches() {
	for _, c := range s.caches {
		c.Clear()
	}
	s.leads.Clear()
}

func (s *Service) load(ctx context.Context, name string, src config.SourceConfig) (*Dataset, error) {
	start := s.now()
	table, err := s.fetchTable(ctx, src)
	s.deps.Metrics.observeFetch(name, start, s.now(), err)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Source: name, Kind: src.Kind, FetchedAt: s.now(), Table: table}
	log := s.logger.With().Str("source", name).Logger()

	switch src.Kind {
	case config.KindTraffic, config.KindSales:
		schema, _ := ingest.SchemaFor(src.Kind)
		res := ingest.Records(table, schema, datekey.Context{
			TabName:     src.Sheet,
			DefaultYear: src.DefaultYear,
			Now:         s.now,
		})
		ds.Records, ds.Issues, ds.Columns = res.Records, res.Issues, res.Columns
		logIssues(log, res.Issues)
	case config.KindLaunches:
		ds.Launches = compare.Launches(table)
	default:
		ds.Rows = ingest.AllData(table)
	}

	for _, se := range table.Skipped {
		log.Debug().Int("line", se.Line).Str("reason", se.Reason).Msg("skipped row")
	}
	log.Info().
		Int("rows", len(table.Rows)).
		Int("records", len(ds.Records)).
		Int("launches", len(ds.Launches)).
		Int("skipped", len(table.Skipped)).
		Msg("source loaded")
	return ds, nil
}

func (s *Service) fetchTable(ctx context.Context, src config.SourceConfig) (*tabular.Table, error) {
	if s.deps.Sheets == nil {
		return nil, fmt.Errorf("sheets fetcher not configured")
	}
	switch src.Transport {
	case config.TransportValues:
		values, err := s.deps.Sheets.Values(ctx, src.SpreadsheetID, src.Range)
		if err != nil {
			return nil, err
		}
		return tabular.FromValues(values)
	case config.TransportGviz:
		text, err := s.deps.Sheets.GvizCSV(ctx, src.SpreadsheetID, src.Sheet)
		if err != nil {
			return nil, err
		}
		return tabular.ParseCSV(text)
	default:
		text, err := s.deps.Sheets.ExportCSV(ctx, src.SpreadsheetID, src.GID)
		if err != nil {
			return nil, err
		}
		return tabular.ParseCSV(text)
	}
}

func logIssues(log zerolog.Logger, issues []ingest.Issue) {
	for _, is := range issues {
		ev := log.Debug()
		if is.Kind == ingest.IssueMissingColumn {
			ev = log.Warn()
		}
		ev.Str("kind", string(is.Kind)).
			Int("row", is.Row).
			Str("column", is.Column).
			Str("value", is.Value).
			Msg("ingestion issue")
	}
}
