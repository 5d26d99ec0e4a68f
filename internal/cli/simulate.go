package cli

import (
	"github.com/spf13/cobra"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/app"
)

var (
	simulateType     string
	simulateSeverity string
	simulateMessage  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic monitoring alert through the configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Type:     simulateType,
			Severity: simulateSeverity,
			Message:  simulateMessage,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateType, "type", "simulated", "Alert type")
	simulateCmd.Flags().StringVar(&simulateSeverity, "severity", "HIGH", "Alert severity (HIGH, MEDIUM, LOW)")
	simulateCmd.Flags().StringVar(&simulateMessage, "message", "synthetic alert from sheetradar", "Alert message")
}
