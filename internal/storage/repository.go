package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createDailyRecordsSQL = `CREATE TABLE IF NOT EXISTS daily_records (
        source          TEXT        NOT NULL,
        day             DATE        NOT NULL,
        investment      NUMERIC     NOT NULL DEFAULT 0,
        impressions     NUMERIC     NOT NULL DEFAULT 0,
        clicks          NUMERIC     NOT NULL DEFAULT 0,
        leads           NUMERIC     NOT NULL DEFAULT 0,
        page_views      NUMERIC     NOT NULL DEFAULT 0,
        sales           NUMERIC     NOT NULL DEFAULT 0,
        revenue         NUMERIC     NOT NULL DEFAULT 0,
        conversion_rate NUMERIC     NOT NULL DEFAULT 0,
        connect_rate    NUMERIC     NOT NULL DEFAULT 0,
        updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (source, day)
    );`

	createSnapshotsSQL = `CREATE TABLE IF NOT EXISTS metric_snapshots (
        id           BIGSERIAL   PRIMARY KEY,
        source       TEXT        NOT NULL,
        bucket_ts    TIMESTAMPTZ NOT NULL,
        period_start TEXT        NOT NULL DEFAULT '',
        period_end   TEXT        NOT NULL DEFAULT '',
        data_count   INTEGER     NOT NULL DEFAULT 0,
        investment   NUMERIC     NOT NULL DEFAULT 0,
        revenue      NUMERIC     NOT NULL DEFAULT 0,
        leads        NUMERIC     NOT NULL DEFAULT 0,
        payload      JSONB,
        status       TEXT        NOT NULL,
        error        TEXT,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        UNIQUE (source, bucket_ts)
    );`

	createMonitoringAlertsSQL = `CREATE TABLE IF NOT EXISTS monitoring_alerts (
        id          BIGSERIAL   PRIMARY KEY,
        fingerprint TEXT        NOT NULL UNIQUE,
        alert_type  TEXT        NOT NULL,
        severity    TEXT        NOT NULL,
        message     TEXT        NOT NULL,
        details     JSONB,
        notified    BOOLEAN     NOT NULL DEFAULT false,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	upsertDailyRecordSQL = `INSERT INTO daily_records (
        source, day, investment, impressions, clicks, leads, page_views,
        sales, revenue, conversion_rate, connect_rate, updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now()
    )
    ON CONFLICT (source, day) DO UPDATE
    SET
        investment      = EXCLUDED.investment,
        impressions     = EXCLUDED.impressions,
        clicks          = EXCLUDED.clicks,
        leads           = EXCLUDED.leads,
        page_views      = EXCLUDED.page_views,
        sales           = EXCLUDED.sales,
        revenue         = EXCLUDED.revenue,
        conversion_rate = EXCLUDED.conversion_rate,
        connect_rate    = EXCLUDED.connect_rate,
        updated_at      = now();`

	listDailyRecordsSQL = `SELECT
        source, day, investment, impressions, clicks, leads, page_views,
        sales, revenue, conversion_rate, connect_rate, updated_at
    FROM daily_records
    WHERE source = $1
      AND day >= $2
      AND day <= $3
    ORDER BY day;`

	upsertSnapshotSQL = `INSERT INTO metric_snapshots (
        source, bucket_ts, period_start, period_end, data_count,
        investment, revenue, leads, payload, status, error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (source, bucket_ts) DO UPDATE
    SET
        period_start = EXCLUDED.period_start,
        period_end   = EXCLUDED.period_end,
        data_count   = EXCLUDED.data_count,
        investment   = EXCLUDED.investment,
        revenue      = EXCLUDED.revenue,
        leads        = EXCLUDED.leads,
        payload      = EXCLUDED.payload,
        status       = EXCLUDED.status,
        error        = EXCLUDED.error
    RETURNING id, created_at;`

	listRecentSnapshotsSQL = `SELECT
        id, source, bucket_ts, period_start, period_end, data_count,
        investment, revenue, leads, payload, status, error, created_at
    FROM metric_snapshots
    WHERE source = $1
    ORDER BY bucket_ts DESC
    LIMIT $2;`

	insertMonitoringAlertSQL = `INSERT INTO monitoring_alerts (
        fingerprint, alert_type, severity, message, details
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (fingerprint) DO UPDATE
    SET fingerprint = EXCLUDED.fingerprint
    RETURNING id, notified, created_at;`

	markAlertNotifiedSQL = `UPDATE monitoring_alerts SET notified = true WHERE id = $1;`

	listRecentAlertsSQL = `SELECT
        id, fingerprint, alert_type, severity, message, details, notified, created_at
    FROM monitoring_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM monitoring_alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// DailyRecordStore persists per-day records.
type DailyRecordStore interface {
	UpsertDailyRecords(ctx context.Context, source string, records []aggregate.DailyRecord) error
	ListDailyRecords(ctx context.Context, source string, from, to time.Time) ([]aggregate.DailyRecord, error)
}

// SnapshotStore persists aggregate snapshots.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, rec SnapshotRecord) (SnapshotRecord, error)
	ListRecentSnapshots(ctx context.Context, source string, limit int) ([]SnapshotRecord, error)
}

// AlertStore defines operations for monitoring alert auditing.
type AlertStore interface {
	InsertMonitoringAlert(ctx context.Context, rec MonitoringAlertRecord) (MonitoringAlertRecord, bool, error)
	MarkAlertNotified(ctx context.Context, id int64) error
	ListRecentAlerts(ctx context.Context, limit int) ([]MonitoringAlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to records, snapshots and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range []string{createDailyRecordsSQL, createSnapshotsSQL, createMonitoringAlertsSQL} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// A failed unlock is released with the session when the connection closes.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertDailyRecords writes records in one batch, replacing existing days.
func (s *Store) UpsertDailyRecords(ctx context.Context, source string, records []aggregate.DailyRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		row, err := RowFromRecord(source, rec)
		if err != nil {
			return err
		}
		batch.Queue(upsertDailyRecordSQL,
			row.Source,
			row.Date,
			row.Investment.String(),
			row.Impressions.String(),
			row.Clicks.String(),
			row.Leads.String(),
			row.PageViews.String(),
			row.Sales.String(),
			row.Revenue.String(),
			row.ConversionRate.String(),
			row.ConnectRate.String(),
		)
	}

	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert daily record: %w", err)
		}
	}
	return nil
}

// ListDailyRecords returns the records of source between from and to inclusive.
func (s *Store) ListDailyRecords(ctx context.Context, source string, from, to time.Time) ([]aggregate.DailyRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDailyRecordsSQL, source, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list daily records: %w", queryErr)
	}
	defer rows.Close()

	out := make([]aggregate.DailyRecord, 0)
	for rows.Next() {
		row, scanErr := scanDailyRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, row.Record())
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// UpsertSnapshot persists the snapshot of one source and bucket.
func (s *Store) UpsertSnapshot(ctx context.Context, rec SnapshotRecord) (SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SnapshotRecord{}, err
	}

	var payload any
	if len(rec.Payload) > 0 {
		payload = []byte(rec.Payload)
	}
	var errMsg any
	if rec.Error != nil {
		errMsg = *rec.Error
	}

	row := pool.QueryRow(ctx, upsertSnapshotSQL,
		rec.Source,
		rec.Bucket,
		rec.PeriodStart,
		rec.PeriodEnd,
		rec.DataCount,
		rec.Investment.String(),
		rec.Revenue.String(),
		rec.Leads.String(),
		payload,
		rec.Status,
		errMsg,
	)
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return SnapshotRecord{}, fmt.Errorf("upsert snapshot: %w", scanErr)
	}
	return rec, nil
}

// ListRecentSnapshots lists the most recent snapshots of source.
func (s *Store) ListRecentSnapshots(ctx context.Context, source string, limit int) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, source, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	out := make([]SnapshotRecord, 0, limit)
	for rows.Next() {
		var (
			rec                           SnapshotRecord
			investment, revenue, leadsStr string
			payload                       []byte
			errMsg                        sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Source,
			&rec.Bucket,
			&rec.PeriodStart,
			&rec.PeriodEnd,
			&rec.DataCount,
			&investment,
			&revenue,
			&leadsStr,
			&payload,
			&rec.Status,
			&errMsg,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rec.Investment, err = decimal.NewFromString(investment); err != nil {
			return nil, fmt.Errorf("parse investment: %w", err)
		}
		if rec.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("parse revenue: %w", err)
		}
		if rec.Leads, err = decimal.NewFromString(leadsStr); err != nil {
			return nil, fmt.Errorf("parse leads: %w", err)
		}
		if len(payload) > 0 {
			rec.Payload = json.RawMessage(payload)
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// InsertMonitoringAlert stores rec unless an alert with the same fingerprint
// exists, and returns the stored row. The boolean reports whether the alert
// still awaits delivery: true for a new row or one never marked notified.
func (s *Store) InsertMonitoringAlert(ctx context.Context, rec MonitoringAlertRecord) (MonitoringAlertRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return MonitoringAlertRecord{}, false, err
	}

	var details any
	if len(rec.Details) > 0 {
		details = []byte(rec.Details)
	}

	row := pool.QueryRow(ctx, insertMonitoringAlertSQL,
		rec.Fingerprint,
		rec.Type,
		rec.Severity,
		rec.Message,
		details,
	)
	if scanErr := row.Scan(&rec.ID, &rec.Notified, &rec.CreatedAt); scanErr != nil {
		return MonitoringAlertRecord{}, false, fmt.Errorf("insert monitoring alert: %w", scanErr)
	}
	return rec, !rec.Notified, nil
}

// MarkAlertNotified flags an alert as delivered.
func (s *Store) MarkAlertNotified(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markAlertNotifiedSQL, id)
	if execErr != nil {
		return fmt.Errorf("mark alert notified: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListRecentAlerts lists most recent monitoring alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]MonitoringAlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]MonitoringAlertRecord, 0, limit)
	for rows.Next() {
		var rec MonitoringAlertRecord
		var details []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.Fingerprint,
			&rec.Type,
			&rec.Severity,
			&rec.Message,
			&details,
			&rec.Notified,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			rec.Details = json.RawMessage(details)
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

// RowFromRecord converts a DailyRecord into its persisted form.
func RowFromRecord(source string, rec aggregate.DailyRecord) (DailyRow, error) {
	day, ok := datekey.Parse(rec.Date)
	if !ok {
		return DailyRow{}, fmt.Errorf("record date %q is not an ISO day", rec.Date)
	}
	return DailyRow{
		Source:         source,
		Date:           day,
		Investment:     decimal.NewFromFloat(rec.Investment),
		Impressions:    decimal.NewFromFloat(rec.Impressions),
		Clicks:         decimal.NewFromFloat(rec.Clicks),
		Leads:          decimal.NewFromFloat(rec.Leads),
		PageViews:      decimal.NewFromFloat(rec.PageViews),
		Sales:          decimal.NewFromFloat(rec.Sales),
		Revenue:        decimal.NewFromFloat(rec.Revenue),
		ConversionRate: decimal.NewFromFloat(rec.ConversionRate),
		ConnectRate:    decimal.NewFromFloat(rec.ConnectRate),
	}, nil
}

// Record converts the row back into a DailyRecord.
func (r DailyRow) Record() aggregate.DailyRecord {
	return aggregate.DailyRecord{
		Date:           datekey.Format(r.Date),
		Investment:     r.Investment.InexactFloat64(),
		Impressions:    r.Impressions.InexactFloat64(),
		Clicks:         r.Clicks.InexactFloat64(),
		Leads:          r.Leads.InexactFloat64(),
		PageViews:      r.PageViews.InexactFloat64(),
		Sales:          r.Sales.InexactFloat64(),
		Revenue:        r.Revenue.InexactFloat64(),
		ConversionRate: r.ConversionRate.InexactFloat64(),
		ConnectRate:    r.ConnectRate.InexactFloat64(),
	}
}

func scanDailyRow(rows pgx.Rows) (DailyRow, error) {
	var (
		row  DailyRow
		nums [9]string
	)
	if err := rows.Scan(
		&row.Source,
		&row.Date,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4],
		&nums[5], &nums[6], &nums[7], &nums[8],
		&row.UpdatedAt,
	); err != nil {
		return DailyRow{}, err
	}

	targets := []*decimal.Decimal{
		&row.Investment, &row.Impressions, &row.Clicks, &row.Leads, &row.PageViews,
		&row.Sales, &row.Revenue, &row.ConversionRate, &row.ConnectRate,
	}
	for i, raw := range nums {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return DailyRow{}, fmt.Errorf("parse numeric column %d: %w", i, err)
		}
		*targets[i] = d
	}
	return row, nil
}

var (
	_ DailyRecordStore = (*Store)(nil)
	_ SnapshotStore    = (*Store)(nil)
	_ AlertStore       = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
)
