package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/kpiscope/internal/utils"
	"github.com/sw33tLie/kpiscope/pkg/storage"
	"github.com/tidwall/gjson"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report the state of the KPI cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		fmt.Printf("Cache directory: %s\n", store.Dir())

		baseline := store.LoadCounts()
		kpis := store.LoadKPIs()
		fps := store.LoadFingerprints(cmd.Context())
		fmt.Printf("Baseline:        %s\n", presence(len(baseline) > 0, fmt.Sprintf("%d counts", len(baseline))))
		fmt.Printf("Fingerprints:    %d records\n", len(fps))

		runVersion := ""
		if data, err := os.ReadFile(store.Path(storage.LastRunFile)); err == nil && gjson.ValidBytes(data) {
			run := gjson.ParseBytes(data)
			runVersion = run.Get("config_version").String()
			fmt.Printf("Last run:        %s %s (%d records, %dms)\n",
				run.Get("processing_mode").String(), run.Get("timestamp").String(),
				run.Get("record_count").Int(), run.Get("duration_ms").Int())
			if ts, err := time.Parse(time.RFC3339, run.Get("timestamp").String()); err == nil {
				fmt.Printf("Last run age:    %s\n", time.Since(ts).Round(time.Second))
			}
		} else {
			fmt.Println("Last run:        none")
		}

		if viper.GetString("kpi_config") != "" {
			cfg, err := loadKPIConfig()
			switch {
			case err != nil:
				utils.Log.Warnf("Could not load KPI configuration: %v", err)
			case runVersion != "" && runVersion != cfg.Version():
				fmt.Printf("Config version:  %s, cache was built with %s\n", cfg.Version(), runVersion)
			default:
				fmt.Printf("Config version:  %s\n", cfg.Version())
			}
		}

		if len(kpis) > 0 {
			ids := make([]string, 0, len(kpis))
			for id := range kpis {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			fmt.Printf("\nCached KPIs (%d):\n", len(kpis))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "KPI\tSTATUS\tCALCULATED\t")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\t%s\t\n", id, kpis[id].Status, kpis[id].CalculationTimestamp)
			}
			w.Flush()
		}

		if len(baseline) == 0 {
			return &exitError{code: exitFatal, err: fmt.Errorf("no baseline in %s, run 'kpiscope process --mode baseline' first", store.Dir())}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func presence(ok bool, detail string) string {
	if !ok {
		return "missing"
	}
	return "present, " + detail
}
