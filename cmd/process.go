package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/kpiscope/internal/telemetry"
	"github.com/sw33tLie/kpiscope/internal/utils"
	"github.com/sw33tLie/kpiscope/pkg/config"
	"github.com/sw33tLie/kpiscope/pkg/kpi"
	"github.com/sw33tLie/kpiscope/pkg/processing"
	"github.com/sw33tLie/kpiscope/pkg/records"
)

// envelope is implemented by the three result envelopes.
type envelope interface {
	Degraded() bool
}

// processCmd implements: kpiscope process
//
//	--mode string          baseline, incremental or targeted
//	--input string         CSV/XLSX file or http(s) export URL
//	--kpi string           KPI id for targeted mode
//	--output string        Write the result envelope to this file instead of stdout
//	--metrics-file string  Write Prometheus metrics to this textfile after the run
//	--strict               Fail on configuration warnings
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Compute KPIs from an incident export",
	Long: `Compute KPIs from an incident export.

Exit codes: 0 on success, 1 on fatal errors, 3 when the run completed but some KPIs were degraded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'kpiscope process --help'", args[0])
		}
		mode, _ := cmd.Flags().GetString("mode")
		input, _ := cmd.Flags().GetString("input")
		target, _ := cmd.Flags().GetString("kpi")
		output, _ := cmd.Flags().GetString("output")
		metricsFile, _ := cmd.Flags().GetString("metrics-file")
		strict, _ := cmd.Flags().GetBool("strict")

		switch mode {
		case processing.ModeBaseline, processing.ModeIncremental:
		case processing.ModeTargeted:
			if target == "" {
				return &exitError{code: exitFatal, err: errors.New("targeted mode requires --kpi")}
			}
		default:
			return &exitError{code: exitFatal, err: fmt.Errorf("invalid mode '%s', use baseline, incremental or targeted", mode)}
		}
		if input == "" {
			return &exitError{code: exitFatal, err: errors.New("--input is required")}
		}

		cfg, err := loadKPIConfig()
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		report := config.Validate(cfg, config.ValidateOptions{Methods: kpi.Methods()})
		for _, w := range report.Warnings {
			utils.Log.Warn(w)
		}
		if err := report.Err(strict); err != nil {
			return &exitError{code: exitFatal, err: err}
		}

		ctx := cmd.Context()
		rs, err := records.Load(ctx, utils.ExpandPath(input), records.LoadOptions{RetryMax: viper.GetInt("http.retry_max")})
		if err != nil {
			return &exitError{code: exitFatal, err: fmt.Errorf("load %s: %w", input, err)}
		}
		utils.Log.Infof("Loaded %d records with %d columns from %s", rs.Len(), len(rs.Columns()), input)

		store, err := openStore()
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		engine, err := processing.New(cfg, store, processing.Options{
			Logger:      utils.Log,
			Concurrency: viper.GetInt("concurrency"),
		})
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}

		var env envelope
		switch mode {
		case processing.ModeBaseline:
			env, err = engine.Baseline(ctx, rs)
		case processing.ModeIncremental:
			env, err = engine.Incremental(ctx, rs)
		case processing.ModeTargeted:
			env, err = engine.Targeted(ctx, rs, target)
		}
		if err != nil {
			var mf *processing.MissingFieldsError
			if errors.As(err, &mf) {
				utils.Log.Errorf("Data is not compatible with KPI %s, missing: %v", mf.KPI, mf.Fields)
			}
			return &exitError{code: exitFatal, err: err}
		}

		if err := writeEnvelope(env, output); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		if metricsFile != "" {
			if err := telemetry.WriteTextfile(metricsFile, telemetry.NewCollector(store, cfg)); err != nil {
				utils.Log.Warnf("Could not write metrics file %s: %v", metricsFile, err)
			}
		}

		if env.Degraded() {
			utils.Log.Warn("Run completed with degraded KPIs")
			return &exitError{code: exitDegraded}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("mode", "m", processing.ModeBaseline, "Processing mode: baseline, incremental or targeted")
	processCmd.Flags().StringP("input", "i", "", "Incident export: CSV or XLSX file, or an http(s) export URL")
	processCmd.Flags().StringP("kpi", "k", "", "KPI id to recompute in targeted mode")
	processCmd.Flags().StringP("output", "o", "", "Write the result envelope to this file (default stdout)")
	processCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	processCmd.Flags().Bool("strict", false, "Treat configuration warnings as errors")
	processCmd.Flags().Int("concurrency", 4, "Number of concurrent KPI calculations")

	viper.BindPFlag("concurrency", processCmd.Flags().Lookup("concurrency"))
}

func writeEnvelope(env envelope, path string) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(utils.ExpandPath(path), data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	utils.Log.Infof("Results written to %s", path)
	return nil
}
