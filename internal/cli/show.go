package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/aggregate"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/app"
)

var (
	showFrom      string
	showTo        string
	recordsMetric string
	compareXLSX   string
	historyLimit  int
	monitorHours  int
	monitorFrom   string
	monitorTo     string
	monitorQuiet  bool
	summaryMetric string
	alertsLimit   int
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <source>",
	Short: "Print the period totals and rates of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := dayRange(showFrom, showTo)
		if err != nil {
			return err
		}
		return getApp().Snapshot(cmd.Context(), app.SnapshotOptions{Source: args[0], From: from, To: to})
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records <source>",
	Short: "Print the daily records of a source with day-over-day variation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := dayRange(showFrom, showTo)
		if err != nil {
			return err
		}
		return getApp().Records(cmd.Context(), app.RecordsOptions{
			Source: args[0],
			From:   from,
			To:     to,
			Metric: aggregate.Metric(recordsMetric),
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <source> <launchA> <launchB>",
	Short: "Compare two launches of a launches source",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Compare(cmd.Context(), app.CompareOptions{
			Source:   args[0],
			LaunchA:  args[1],
			LaunchB:  args[2],
			XLSXPath: compareXLSX,
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <source>",
	Short: "Display persisted snapshots of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().History(cmd.Context(), app.HistoryOptions{Source: args[0], Limit: historyLimit})
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run one backend daily check and notify new alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := dayRange(monitorFrom, monitorTo)
		if err != nil {
			return err
		}
		if monitorHours < 0 {
			return fmt.Errorf("--hours must not be negative")
		}
		return getApp().Monitor(cmd.Context(), app.MonitorOptions{
			Hours:  monitorHours,
			From:   from,
			To:     to,
			Notify: !monitorQuiet,
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <source>",
	Short: "Print the headline metrics found in each row of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Summary(cmd.Context(), app.SummaryOptions{Source: args[0], Metric: summaryMetric})
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List stored monitoring alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Alerts(cmd.Context(), app.AlertsOptions{Limit: alertsLimit})
	},
}

func init() {
	for _, c := range []*cobra.Command{snapshotCmd, recordsCmd} {
		c.Flags().StringVar(&showFrom, "from", "", "First day (inclusive, any accepted date form)")
		c.Flags().StringVar(&showTo, "to", "", "Last day (inclusive)")
	}
	recordsCmd.Flags().StringVar(&recordsMetric, "metric", string(aggregate.MetricInvestment), "Metric used for the variation column")
	compareCmd.Flags().StringVar(&compareXLSX, "xlsx", "", "Also write the comparison to an XLSX workbook")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of snapshots to display")
	summaryCmd.Flags().StringVar(&summaryMetric, "metric", "", "Restrict the view to one keyword metric")
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Number of alerts to display")

	monitorCmd.Flags().IntVar(&monitorHours, "hours", 0, "Window in hours (defaults to monitoring.window_hours)")
	monitorCmd.Flags().StringVar(&monitorFrom, "from", "", "Start date of the window")
	monitorCmd.Flags().StringVar(&monitorTo, "to", "", "End date of the window")
	monitorCmd.Flags().BoolVar(&monitorQuiet, "no-notify", false, "Print alerts without notifying")
}
