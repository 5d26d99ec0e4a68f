package cli

import (
	"github.com/spf13/cobra"

	"github.com/rodolfomori-devclub/dashboard-devclub-main-interface-sub002/internal/app"
)

var runServe bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the periodic refresh service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{Serve: runServe})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API without the refresh loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runServe, "serve", false, "Also expose the read API on http.addr")
}
