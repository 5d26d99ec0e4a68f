package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/config"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
)

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From string
	To   string
	// Sources defaults to every traffic and sales source.
	Sources []string
	DryRun  bool
}

// Backfill stores the daily records of [From, To] for each source.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	var (
		store      *storage.Store
		closeStore func()
		err        error
	)
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
	} else {
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot backfill")
		}
		defer closeStore()
	}

	rt, err := a.build(ctx, buildOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	names := opts.Sources
	if len(names) == 0 {
		for _, n := range rt.svc.SourceNames() {
			src, _ := rt.svc.Source(n)
			if src.Kind == config.KindTraffic || src.Kind == config.KindSales {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		return errors.New("no traffic or sales source configured")
	}

	var records storage.DailyRecordStore
	if store != nil {
		records = store
	}

	processed, failed := 0, 0
	for _, name := range names {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		recs, err := rt.svc.Records(ctx, name, opts.From, opts.To)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("source", name).Msg("backfill failed")
			continue
		}
		if records != nil {
			if err := records.UpsertDailyRecords(ctx, name, recs); err != nil {
				failed++
				a.Logger.Error().Err(err).Str("source", name).Msg("backfill failed")
				continue
			}
		}
		processed++
		a.Logger.Info().Str("source", name).Int("records", len(recs)).Bool("dry_run", opts.DryRun).Msg("source backfilled")
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("backfill complete")
	if failed > 0 {
		return fmt.Errorf("%d source(s) failed to backfill, check the logs", failed)
	}
	return nil
}
