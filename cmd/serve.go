package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/kpiscope/internal/server"
	"github.com/sw33tLie/kpiscope/internal/utils"
	"github.com/sw33tLie/kpiscope/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cached KPIs over HTTP",
	Long:  `Start a read-only JSON API over the KPI cache, with a Prometheus /metrics endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}

		var cfg *config.Config
		if viper.GetString("kpi_config") != "" {
			cfg, err = loadKPIConfig()
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
		} else {
			utils.Log.Warn("No KPI configuration given, /api/scorecard and score metrics are disabled")
		}

		srv := server.New(store, cfg, viper.GetString("server.username"), viper.GetString("server.password"))
		if err := srv.Start(viper.GetString("server.listen")); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", ":9999", "Address to bind the server to")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.username", serveCmd.Flags().Lookup("username"))
	viper.BindPFlag("server.password", serveCmd.Flags().Lookup("password"))
}
