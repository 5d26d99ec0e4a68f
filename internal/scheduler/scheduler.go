// Package scheduler drives the periodic sheet refresh.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
)

// TickFunc is invoked on every aligned interval with the bucket start.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// Immediate runs one refresh right after the startup delay instead of
	// waiting for the first bucket boundary.
	Immediate bool
}

// Scheduler runs refresh ticks at a fixed cadence.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logging.Component(logger, "scheduler"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run blocks, invoking tick at each interval until ctx is cancelled. Tick
// errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := wait(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.Immediate {
		s.execute(ctx, tick, s.bucketStart(s.now()))
	}

	next := s.nextTick(s.now())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			skipped := next
			next = s.nextTick(s.now())
			s.logger.Warn().Time("skipped", skipped).Time("next_bucket", next).Msg("tick overran its interval")
			delay = next.Sub(s.now())
		}

		s.logger.Debug().Time("next_bucket", next).Msg("waiting for next bucket")
		if err := wait(ctx, delay); err != nil {
			return err
		}

		s.execute(ctx, tick, s.bucketStart(next))
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, bucket time.Time) {
	start := s.now()
	s.logger.Info().Time("bucket", bucket).Msg("executing refresh tick")
	if err := tick(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("tick execution failed")
		return
	}
	s.logger.Debug().Dur("took", s.now().Sub(start)).Time("bucket", bucket).Msg("tick done")
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
