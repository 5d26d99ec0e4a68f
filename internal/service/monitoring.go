package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/alerting"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/fetcher"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/storage"
)

// MonitoringQuery selects the daily-check window. A zero query uses the
// configured window in hours.
type MonitoringQuery struct {
	Hours     int
	StartDate string
	EndDate   string
	// Notify delivers new alerts; the scheduled check always notifies. A
	// check with Notify false only reports and leaves the dedup state alone.
	Notify *bool
}

// MonitoringResult is the outcome of one daily check.
type MonitoringResult struct {
	Check *fetcher.DailyCheck
	// Selected are the alerts at or above the configured severity.
	Selected []fetcher.Alert
	// Delivered are the Selected alerts that were new and notified.
	Delivered  []fetcher.Alert
	Duplicates int
}

// CheckMonitoring runs the backend daily check and delivers new alerts at or
// above the minimum severity. Alerts are deduplicated by fingerprint: through
// the alert store when configured, otherwise in memory for the cooldown. An
// alert counts as seen only once it was delivered, so a failed delivery is
// retried by the next check.
func (s *Service) CheckMonitoring(ctx context.Context, q MonitoringQuery) (*MonitoringResult, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	fq := fetcher.DailyCheckQuery{Hours: q.Hours, StartDate: q.StartDate, EndDate: q.EndDate}
	if fq.Hours <= 0 && fq.StartDate == "" && fq.EndDate == "" {
		fq.Hours = s.monitoring.WindowHours
	}

	start := s.now()
	check, err := s.deps.Backend.DailyCheck(ctx, fq)
	s.deps.Metrics.observeFetch("backend_daily_check", start, s.now(), err)
	if err != nil {
		return nil, err
	}

	res := &MonitoringResult{Check: check}
	floor := fetcher.Severity(strings.ToUpper(s.monitoring.MinSeverity))
	for _, a := range check.Alerts {
		if a.Severity.AtLeast(floor) {
			res.Selected = append(res.Selected, a)
		}
	}

	if q.Notify == nil || *q.Notify {
		s.deliver(ctx, check, res)
	}

	s.logger.Info().
		Int("alerts", len(check.Alerts)).
		Int("selected", len(res.Selected)).
		Int("delivered", len(res.Delivered)).
		Int("duplicates", res.Duplicates).
		Msg("monitoring check done")
	return res, nil
}

func (s *Service) deliver(ctx context.Context, check *fetcher.DailyCheck, res *MonitoringResult) {
	day := s.alertDay(check)
	for _, a := range res.Selected {
		fp := Fingerprint(a, day)
		id, pending := s.claim(ctx, fp, a)
		if !pending {
			res.Duplicates++
			continue
		}
		if err := s.deps.Notifier.Notify(ctx, notification(check, a, s.now())); err != nil {
			s.logger.Error().Err(err).Str("type", a.Type).Msg("failed to dispatch alert")
			continue
		}
		res.Delivered = append(res.Delivered, a)
		s.deps.Metrics.observeAlert(string(a.Severity))
		s.markDelivered(ctx, id, fp)
	}
}

// claim reports whether the alert behind fp still has to be delivered. The
// returned id is the stored row id, 0 when only the in-memory set was used.
func (s *Service) claim(ctx context.Context, fp string, a fetcher.Alert) (int64, bool) {
	if s.sentRecently(fp) {
		return 0, false
	}
	if s.deps.Alerts == nil {
		return 0, true
	}
	rec, pending, err := s.deps.Alerts.InsertMonitoringAlert(ctx, storage.MonitoringAlertRecord{
		Fingerprint: fp,
		Type:        a.Type,
		Severity:    string(a.Severity),
		Message:     a.Message,
		Details:     a.Details,
	})
	if err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			s.logger.Error().Err(err).Str("type", a.Type).Msg("failed to persist alert, using in-memory dedup")
		}
		return 0, true
	}
	return rec.ID, pending
}

func (s *Service) sentRecently(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.recent[fp]
	return ok && (s.cooldown <= 0 || s.now().Sub(last) < s.cooldown)
}

// markDelivered records a delivered alert in memory and, when stored, in the
// alert table.
func (s *Service) markDelivered(ctx context.Context, id int64, fp string) {
	s.mu.Lock()
	s.recent[fp] = s.now()
	s.mu.Unlock()

	if id > 0 && s.deps.Alerts != nil {
		if err := s.deps.Alerts.MarkAlertNotified(ctx, id); err != nil {
			s.logger.Warn().Err(err).Int64("id", id).Msg("failed to mark alert notified")
		}
	}
}

// RecentAlerts lists the stored monitoring alerts, newest first.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]storage.MonitoringAlertRecord, error) {
	if s.deps.Alerts == nil {
		return nil, storage.ErrNotConfigured
	}
	if limit <= 0 {
		limit = 20
	}
	return s.deps.Alerts.ListRecentAlerts(ctx, limit)
}

// pruneAlerts drops stored alerts older than the retention window.
func (s *Service) pruneAlerts(ctx context.Context) {
	if s.deps.Alerts == nil || s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	if err := s.deps.Alerts.DeleteAlertsBefore(ctx, cutoff); err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			s.logger.Warn().Err(err).Time("cutoff", cutoff).Msg("failed to prune monitoring alerts")
		}
	}
}

func (s *Service) alertDay(check *fetcher.DailyCheck) string {
	if check.Period.End != "" {
		if day, ok := datekey.Normalize(check.Period.End, datekey.Context{}); ok {
			return day
		}
	}
	return datekey.Format(s.now())
}

// Fingerprint identifies an alert within one day.
func Fingerprint(a fetcher.Alert, day string) string {
	var details bytes.Buffer
	if len(a.Details) > 0 {
		if err := json.Compact(&details, a.Details); err != nil {
			details.Reset()
			details.Write(a.Details)
		}
	}
	h := sha256.New()
	for _, part := range []string{a.Type, strings.ToUpper(string(a.Severity)), a.Message, details.String(), day} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func notification(check *fetcher.DailyCheck, a fetcher.Alert, now time.Time) alerting.Notification {
	funnel := make(map[string]float64, len(check.Funnel))
	for k, v := range check.Funnel {
		funnel[k] = float64(v)
	}
	return alerting.Notification{
		CheckedAt:   now,
		PeriodStart: check.Period.Start,
		PeriodEnd:   check.Period.End,
		Type:        a.Type,
		Severity:    string(a.Severity),
		Message:     a.Message,
		Details:     a.Details,
		Funnel:      funnel,
	}
}
