package cli

import (
	"github.com/spf13/cobra"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/app"
)

var (
	exportSource    string
	exportFrom      string
	exportTo        string
	exportPNGPath   string
	exportSQLite    string
	exportLeadsDir  string
	exportSearch    string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export daily records as PNG/SQLite and backend leads as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := dayRange(exportFrom, exportTo)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			Source:     exportSource,
			From:       from,
			To:         to,
			PNGPath:    exportPNGPath,
			SQLitePath: exportSQLite,
			LeadsDir:   exportLeadsDir,
			Search:     exportSearch,
			MaxPoints:  exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSource, "source", "", "Traffic or sales source to export")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First day (inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last day (inclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportSQLite, "sqlite", "", "Path of the SQLite database to write records into")
	exportCmd.Flags().StringVar(&exportLeadsDir, "leads-dir", "", "Directory receiving the backend leads CSV")
	exportCmd.Flags().StringVar(&exportSearch, "search", "", "Backend lead search filter")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum chart points (defaults to config)")
}
