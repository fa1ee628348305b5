package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/kpiscope/internal/utils"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/sw33tLie/kpiscope/pkg/records"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a KPI configuration, optionally against a data file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataPath, _ := cmd.Flags().GetString("data")
		strict, _ := cmd.Flags().GetBool("strict")

		cfg, err := loadKPIConfig()
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		fmt.Printf("Configuration %s (version %s, %d KPIs, %d enabled)\n",
			viper.GetString("kpi_config"), cfg.Version(), len(cfg.KPIs), len(cfg.EnabledKPIs()))

		report := config.Validate(cfg, config.ValidateOptions{Methods: kpi.Methods()})
		if dataPath != "" {
			rs, err := records.Load(cmd.Context(), utils.ExpandPath(dataPath), records.LoadOptions{RetryMax: viper.GetInt("http.retry_max")})
			if err != nil {
				return &exitError{code: exitFatal, err: fmt.Errorf("load %s: %w", dataPath, err)}
			}
			fmt.Printf("Data file %s (%d records, %d columns)\n", dataPath, rs.Len(), len(rs.Columns()))
			data := config.CheckColumns(cfg, rs.Columns())
			report.Errors = append(report.Errors, data.Errors...)
			report.Warnings = append(report.Warnings, data.Warnings...)
		}

		printReport(report)
		if !report.Passed(strict) {
			fmt.Println("\nValidation FAILED")
			return &exitError{code: exitFatal}
		}
		fmt.Println("\nValidation PASSED")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("data", "", "Data file (CSV/XLSX) to check against the configuration")
	validateCmd.Flags().Bool("strict", false, "Treat warnings as errors")
}

func printReport(r config.Report) {
	if len(r.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("  ✗ %s\n", e)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
	}
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		fmt.Println("\nNo issues found")
	}
}
