package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/config"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
)

// Snapshot statuses.
const (
	StatusComplete = "complete"
	StatusEmpty    = "empty"
	StatusErrored  = "errored"
)

// ProcessTick refreshes every source once, persisting the daily records and
// snapshot of typed sources, then runs the monitoring check and prunes alerts
// past the retention window. Only one process
// runs a tick at a time when an advisory locker is configured.
func (s *Service) ProcessTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		s.deps.Metrics.observeTick(err)
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	err = s.executeTick(ctx, bucket)
	s.deps.Metrics.observeTick(err)
	return err
}

func (s *Service) executeTick(ctx context.Context, bucket time.Time) error {
	var errs []error
	for _, name := range s.SourceNames() {
		if err := s.refreshSource(ctx, name, bucket); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", name, err))
		}
	}

	if s.monitoring.Enabled && s.deps.Backend != nil {
		if _, err := s.CheckMonitoring(ctx, MonitoringQuery{}); err != nil {
			errs = append(errs, fmt.Errorf("monitoring: %w", err))
		}
	}
	s.pruneAlerts(ctx)
	return errors.Join(errs...)
}

func (s *Service) refreshSource(ctx context.Context, name string, bucket time.Time) error {
	src := s.sources[name]
	ds, err := s.caches[name].Refresh(ctx, name, s.loader(name, src))
	if err != nil {
		if src.Kind == config.KindTraffic || src.Kind == config.KindSales {
			s.persistSnapshot(ctx, storage.SnapshotRecord{
				Source: name,
				Bucket: bucket,
				Status: StatusErrored,
				Error:  ptr(err.Error()),
			})
		}
		return err
	}

	if src.Kind != config.KindTraffic && src.Kind != config.KindSales {
		return nil
	}

	if s.deps.Records != nil {
		if err := s.deps.Records.UpsertDailyRecords(ctx, name, ds.Records); err != nil {
			s.logger.Error().Err(err).Str("source", name).Msg("failed to upsert daily records")
		}
	}

	rec := storage.SnapshotRecord{Source: name, Bucket: bucket, Status: StatusEmpty}
	if snap := aggregate.Aggregate(ds.Records); snap != nil {
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		rec = storage.SnapshotRecord{
			Source:      name,
			Bucket:      bucket,
			PeriodStart: snap.Period.Start,
			PeriodEnd:   snap.Period.End,
			DataCount:   snap.DataCount,
			Investment:  decimal.NewFromFloat(snap.Totals.Investment),
			Revenue:     decimal.NewFromFloat(snap.Totals.Revenue),
			Leads:       decimal.NewFromFloat(snap.Totals.Leads),
			Payload:     payload,
			Status:      StatusComplete,
		}
		s.logger.Info().
			Str("source", name).
			Time("bucket", bucket).
			Int("data_count", snap.DataCount).
			Float64("investment", snap.Totals.Investment).
			Float64("leads", snap.Totals.Leads).
			Msg("snapshot computed")
	}
	s.persistSnapshot(ctx, rec)
	return nil
}

func (s *Service) persistSnapshot(ctx context.Context, rec storage.SnapshotRecord) {
	if s.deps.Snapshots == nil {
		return
	}
	if _, err := s.deps.Snapshots.UpsertSnapshot(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("source", rec.Source).Time("bucket", rec.Bucket).Msg("failed to upsert snapshot")
	}
}

// History returns the persisted snapshots of name, newest first.
func (s *Service) History(ctx context.Context, name string, limit int) ([]storage.SnapshotRecord, error) {
	if _, err := s.Source(name); err != nil {
		return nil, err
	}
	if s.deps.Snapshots == nil {
		return nil, storage.ErrNotConfigured
	}
	if limit <= 0 {
		limit = 20
	}
	return s.deps.Snapshots.ListRecentSnapshots(ctx, name, limit)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.deps.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func ptr[T any](v T) *T {
	return &v
}
