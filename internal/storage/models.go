package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DailyRow is a persisted DailyRecord of one source.
type DailyRow struct {
	Source         string
	Date           time.Time
	Investment     decimal.Decimal
	Impressions    decimal.Decimal
	Clicks         decimal.Decimal
	Leads          decimal.Decimal
	PageViews      decimal.Decimal
	Sales          decimal.Decimal
	Revenue        decimal.Decimal
	ConversionRate decimal.Decimal
	ConnectRate    decimal.Decimal
	UpdatedAt      time.Time
}

// SnapshotRecord is one aggregate computed by a refresh tick.
type SnapshotRecord struct {
	ID          int64
	Source      string
	Bucket      time.Time
	PeriodStart string
	PeriodEnd   string
	DataCount   int
	Investment  decimal.Decimal
	Revenue     decimal.Decimal
	Leads       decimal.Decimal
	Payload     json.RawMessage
	Status      string
	Error       *string
	CreatedAt   time.Time
}

// MonitoringAlertRecord captures a backend alert for de-duplication and audit.
type MonitoringAlertRecord struct {
	ID          int64
	Fingerprint string
	Type        string
	Severity    string
	Message     string
	Details     json.RawMessage
	Notified    bool
	CreatedAt   time.Time
}
