package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/config"
)

func TestNilStoreIsNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()

	if err := s.EnsureSchema(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := s.UpsertDailyRecords(ctx, "trafego", []aggregate.DailyRecord{{Date: "2025-01-01"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("UpsertDailyRecords: %v", err)
	}
	if _, _, err := s.TryAdvisoryLock(ctx, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("TryAdvisoryLock: %v", err)
	}
	if _, _, err := s.InsertMonitoringAlert(ctx, MonitoringAlertRecord{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("InsertMonitoringAlert: %v", err)
	}
	s.Close()
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), config.DatabaseConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRowFromRecordRoundTrip(t *testing.T) {
	rec := aggregate.DailyRecord{Date: "2025-02-10", Investment: 1234.56, Leads: 12, ConversionRate: 2.5}
	row, err := RowFromRecord("trafego", rec)
	if err != nil {
		t.Fatalf("RowFromRecord: %v", err)
	}
	if !row.Date.Equal(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", row.Date)
	}
	if row.Investment.String() != "1234.56" {
		t.Fatalf("unexpected investment %s", row.Investment)
	}
	if back := row.Record(); back != rec {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, rec)
	}

	if _, err := RowFromRecord("trafego", aggregate.DailyRecord{Date: "10/02/2025"}); err == nil {
		t.Fatal("non ISO date must be rejected")
	}
}

func TestAlertInsertReturnsExistingRow(t *testing.T) {
	// A conflicting insert must hand back the stored row so an undelivered
	// alert stays pending.
	if strings.Contains(insertMonitoringAlertSQL, "DO NOTHING") {
		t.Fatal("conflicting inserts must return the existing row")
	}
	if !strings.Contains(insertMonitoringAlertSQL, "RETURNING id, notified, created_at") {
		t.Fatalf("insert must return the notified flag:\n%s", insertMonitoringAlertSQL)
	}
}
