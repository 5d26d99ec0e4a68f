package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/app"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/config"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/datekey"
	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "sheetradar",
	Short:         "Fetch, aggregate and compare marketing spreadsheet metrics",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil || cmd.Name() == versionCmd.Name() {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		appHandle.Out = cmd.OutOrStdout()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}

// dayFlag normalizes a date flag to its ISO key. Empty stays empty.
func dayFlag(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	key, ok := datekey.Normalize(value, datekey.Context{})
	if !ok {
		return "", fmt.Errorf("invalid --%s value %q", name, value)
	}
	return key, nil
}

// dayRange normalizes --from/--to and checks their order.
func dayRange(from, to string) (string, string, error) {
	f, err := dayFlag("from", from)
	if err != nil {
		return "", "", err
	}
	t, err := dayFlag("to", to)
	if err != nil {
		return "", "", err
	}
	if f != "" && t != "" && f > t {
		return "", "", fmt.Errorf("--from must not be after --to")
	}
	return f, t, nil
}
