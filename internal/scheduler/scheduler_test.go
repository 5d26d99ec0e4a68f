package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsZeroInterval(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestNextTickAligned(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Minute, AlignToStart: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 3, 1, 12, 34, 56, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(time.Date(2025, 3, 1, 12, 40, 0, 0, time.UTC)) {
		t.Fatalf("nextTick = %v", got)
	}
	boundary := time.Date(2025, 3, 1, 12, 40, 0, 0, time.UTC)
	if got := s.nextTick(boundary); !got.Equal(boundary.Add(10 * time.Minute)) {
		t.Fatalf("tick on boundary must move forward, got %v", got)
	}
	if got := s.bucketStart(now); !got.Equal(time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("bucketStart = %v", got)
	}
}

func TestRunImmediateAndKeepsGoingAfterErrors(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Millisecond, Immediate: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return errors.New("sheet unavailable")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
	}
}
