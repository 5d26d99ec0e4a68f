package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/fetcher"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/service"
)

// SimulateOptions describe the synthetic alert.
type SimulateOptions struct {
	Type     string
	Severity string
	Message  string
}

// SimulateAlert pushes one synthetic monitoring alert through the configured
// notifier, exercising the same path as the scheduled check.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	sev := fetcher.Severity(strings.ToUpper(opts.Severity))
	if sev.Rank() == 0 {
		return errors.New("severity must be one of HIGH, MEDIUM, LOW")
	}

	today := datekey.Format(a.now())
	check := &fetcher.DailyCheck{
		Funnel: map[string]fetcher.Flex{},
		Alerts: []fetcher.Alert{{
			Type:     opts.Type,
			Severity: sev,
			Message:  opts.Message,
			Details:  json.RawMessage(`{"simulated":true}`),
		}},
	}
	check.Period.Start, check.Period.End = today, today

	rt, err := a.build(ctx, buildOptions{backend: &staticBackend{check: check}, notifier: notifier})
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.svc.CheckMonitoring(ctx, service.MonitoringQuery{})
	if err != nil {
		return err
	}
	if len(res.Selected) == 0 {
		return errors.New("alert is below monitoring.min_severity")
	}
	if len(res.Delivered) == 0 {
		return errors.New("alert was not delivered, check the logs")
	}
	return nil
}

type staticBackend struct {
	check *fetcher.DailyCheck
}

func (s *staticBackend) Leads(ctx context.Context, q fetcher.LeadsQuery) (*fetcher.LeadsPage, error) {
	return &fetcher.LeadsPage{}, nil
}

func (s *staticBackend) AllLeads(ctx context.Context, q fetcher.LeadsQuery) ([]fetcher.Lead, error) {
	return nil, nil
}

func (s *staticBackend) DailyCheck(ctx context.Context, q fetcher.DailyCheckQuery) (*fetcher.DailyCheck, error) {
	return s.check, nil
}

var _ fetcher.BackendFetcher = (*staticBackend)(nil)
